package adb

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
	"golang.org/x/time/rate"
)

// Server is the top-level acceptor: one TCP listener that creates one
// TransportSession (by way of ServeConn's dialect sniff) per accepted
// connection, against a shared device Backend.
type Server struct {
	addr    string
	backend Backend
	cfg     *Config
	logger  Logger

	listener net.Listener
	limiter  *rate.Limiter

	wg sync.WaitGroup
}

// NewServer builds a Server bound to addr (host:port) with the given
// backend, configured by opts.
func NewServer(addr string, backend Backend, logger Logger, opts ...Option) *Server {
	cfg := ApplyOptions(opts)
	s := &Server{addr: addr, backend: backend, cfg: cfg, logger: logger}
	if cfg.acceptRatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.acceptRatePerSec), cfg.acceptBurst)
	}
	return s
}

// listen opens the TCP listener with SO_REUSEADDR set on the underlying
// socket, so a restarted server can rebind a recently-freed port
// immediately instead of waiting out TIME_WAIT.
func (s *Server) listen() (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(context.Background(), "tcp", s.addr)
}

// Run starts accepting connections and blocks until ctx is canceled. On
// return, the listener is closed, every live session has been closed, and
// (bounded by the configured shutdown timeout) background goroutines have
// been given a chance to exit.
func (s *Server) Run(ctx context.Context) error {
	ln, err := s.listen()
	if err != nil {
		return fmt.Errorf("mockadbd: listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.logger.Info().Str("addr", s.addr).Msg("acceptor: listening")

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	acceptErr := s.acceptLoop(ctx)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.cfg.shutdownTimeout):
		s.logger.Warn().Msg("acceptor: shutdown timeout exceeded, returning with sessions still draining")
	}

	if ctx.Err() != nil {
		return nil
	}
	return acceptErr
}

func (s *Server) acceptLoop(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if s.limiter != nil && !s.limiter.Allow() {
			conn.Close()
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			stop := context.AfterFunc(ctx, func() { conn.Close() })
			defer stop()
			ServeConn(conn, s.backend, s.cfg, s.logger)
		}()
	}
}

// Addr returns the bound listener address; valid only after Run has
// started listening.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}
