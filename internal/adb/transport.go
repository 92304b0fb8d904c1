package adb

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// sessionState is the transport session's lifecycle state:
// AwaitingConnect -> Running -> Closed.
type sessionState int32

const (
	stateAwaitingConnect sessionState = iota
	stateRunning
	stateClosed
)

// TransportSession is the per-connection state machine: it performs the
// CNXN handshake, then demultiplexes inbound packets to Stream objects
// and segments each stream's outbound bytes to the negotiated
// max-payload. One TransportSession owns exactly one net.Conn.
type TransportSession struct {
	ID string // correlates this session's log lines (google/uuid)

	conn    net.Conn
	reader  *FrameReader
	writer  *FrameWriter
	backend Backend
	cfg     *Config
	logger  Logger
	dispatcher *dispatcher

	state      atomic.Int32
	maxPayload atomic.Int64

	streams *streamRegistry

	closeOnce sync.Once
}

// NewTransportSession wraps conn for binary-protocol service. prefix, if
// non-empty, is bytes already consumed from conn by a dialect sniff (see
// internal/adb/host.go) that must be replayed as the start of the packet
// stream.
func NewTransportSession(conn net.Conn, backend Backend, cfg *Config, logger Logger, prefix []byte) *TransportSession {
	sessionID := uuid.NewString()
	ts := &TransportSession{
		ID:         sessionID,
		conn:       conn,
		reader:     NewFrameReader(conn, prefix),
		writer:     NewFrameWriter(conn),
		backend:    backend,
		cfg:        cfg,
		logger:     logger.With().Str("session", sessionID).Logger(),
		streams:    newStreamRegistry(),
	}
	ts.dispatcher = newDispatcher(backend, cfg, ts.logger)
	ts.maxPayload.Store(FallbackMaxPayload)
	ts.state.Store(int32(stateAwaitingConnect))
	return ts
}

// Run executes the packet loop until the peer disconnects, a codec error
// occurs, or the session is explicitly closed. It always returns after
// tearing the session fully down.
func (ts *TransportSession) Run() {
	defer ts.Close()

	for {
		if d := ts.cfg.idleTimeout; d > 0 {
			ts.conn.SetReadDeadline(time.Now().Add(d))
		}
		pkt, err := ts.reader.ReadPacket()
		if err != nil {
			if err != io.EOF {
				ts.logger.Debug().Err(err).Msg("transport: packet read failed, closing session")
			}
			return
		}
		ts.cfg.Metrics().IncrementPacketsIn()
		ts.cfg.Metrics().IncrementBytesIn(int64(HeaderSize + len(pkt.Payload)))

		if ts.handlePacket(pkt) {
			return
		}
	}
}

// handlePacket dispatches one inbound packet by command. It returns true
// when the session should terminate.
func (ts *TransportSession) handlePacket(pkt Packet) bool {
	switch sessionState(ts.state.Load()) {
	case stateAwaitingConnect:
		switch pkt.Command {
		case CmdCnxn:
			ts.handleCnxn(pkt)
		case CmdAuth:
			// AUTH is silently discarded while awaiting CNXN; authentication is bypassed.
		default:
			ts.logger.Debug().Stringer("cmd", pkt.Command).Msg("transport: unexpected command before CNXN, ignoring")
		}
		return false

	case stateRunning:
		switch pkt.Command {
		case CmdCnxn:
			ts.handleCnxn(pkt)
		case CmdAuth:
			ts.sendCnxn()
		case CmdOpen:
			ts.handleOpen(pkt)
		case CmdWrte:
			ts.handleWrte(pkt)
		case CmdOkay:
			// Flow-control credit ack for our prior WRTE; this implementation
			// does not throttle on it.
		case CmdClse:
			ts.handleClse(pkt)
		default:
			ts.logger.Debug().Stringer("cmd", pkt.Command).Msg("transport: unrecognised command, ignoring")
		}
		return false

	default: // stateClosed
		return true
	}
}

// handleCnxn performs (or re-performs) the connect negotiation: clamp the
// peer's advertised max-payload, reply with our own CNXN banner, and
// enter Running.
func (ts *TransportSession) handleCnxn(pkt Packet) {
	peerMax := pkt.Arg1
	negotiated := peerMax
	if negotiated == 0 {
		negotiated = FallbackMaxPayload
	}
	if negotiated > OperationalMaxPayload {
		negotiated = OperationalMaxPayload
	}
	ts.maxPayload.Store(int64(negotiated))
	ts.state.Store(int32(stateRunning))
	ts.sendCnxn()
}

// sendCnxn emits our CNXN reply with the device's banner properties. No
// optional adb features are advertised.
func (ts *TransportSession) sendCnxn() {
	banner := ts.buildBanner()
	ts.writer.WritePacket(CmdCnxn, 0x01000000, OperationalMaxPayload, []byte(banner))
	ts.cfg.Metrics().IncrementPacketsOut()
}

func (ts *TransportSession) buildBanner() string {
	props := ts.backend.BannerProperties()
	var b strings.Builder
	b.WriteString("device::")
	for k, v := range props {
		fmt.Fprintf(&b, "%s=%s;", k, v)
	}
	b.WriteByte(0)
	return b.String()
}

// handleOpen parses the service string from the payload, consults the
// dispatcher, and either allocates a stream (replying OKAY) or replies
// CLSE for an unrecognised service.
func (ts *TransportSession) handleOpen(pkt Packet) {
	remoteID := pkt.Arg0
	service := strings.TrimRight(string(pkt.Payload), "\x00")

	sender := &streamSender{ts: ts, localID: remoteID}
	handler, matched, err := ts.dispatcher.Resolve(service, sender)
	if !matched {
		ts.logger.Debug().Err(ErrUnsupportedSvc).Str("service", service).Msg("transport: rejecting OPEN")
		ts.writer.WritePacket(CmdClse, 0, remoteID, nil)
		return
	}
	if err != nil {
		ts.logger.Warn().Err(err).Str("service", service).Msg("transport: service factory failed")
		ts.writer.WritePacket(CmdClse, 0, remoteID, nil)
		return
	}

	stream, err := ts.streams.Open(remoteID, service, handler)
	if err != nil {
		ts.logger.Debug().Err(err).Uint32("local_id", remoteID).Msg("transport: protocol violation on OPEN")
		return
	}
	sender.remoteID = stream.RemoteID

	ts.writer.WritePacket(CmdOkay, stream.RemoteID, stream.LocalID, nil)
	ts.cfg.Metrics().IncrementStreamsOpened()

	// Only start the handler's own I/O once OKAY is on the wire, so the
	// peer never sees stream output arrive ahead of the OPEN ack.
	handler.Start()
}

// handleWrte acks flow control immediately (OKAY), then delivers the
// payload to the stream's handler — ack-before-deliver is required so the
// peer can pipeline its next WRTE while we're still processing this one.
func (ts *TransportSession) handleWrte(pkt Packet) {
	stream, ok := ts.streams.ByLocal(pkt.Arg0)
	if !ok {
		ts.logger.Debug().Err(ErrUnknownStream).Uint32("local_id", pkt.Arg0).Msg("transport: dropping WRTE")
		return
	}
	ts.writer.WritePacket(CmdOkay, stream.RemoteID, stream.LocalID, nil)
	stream.Handler.Deliver(pkt.Payload)
}

// handleClse closes the named stream and acks with our own CLSE. Sending
// CLSE twice for the same stream is a no-op the second time.
func (ts *TransportSession) handleClse(pkt Packet) {
	stream, ok := ts.streams.ByLocal(pkt.Arg0)
	if !ok {
		return
	}
	ts.closeStream(stream)
	ts.writer.WritePacket(CmdClse, stream.RemoteID, stream.LocalID, nil)
}

// closeStream releases the stream's handler and removes it from the
// registry. Idempotent via Stream.markClosed.
func (ts *TransportSession) closeStream(stream *Stream) {
	ts.streams.Remove(stream)
	if stream.markClosed() {
		stream.Handler.Close()
		ts.cfg.Metrics().IncrementStreamsClosed()
	}
}

// send segments b into chunks of at most the negotiated max-payload and
// emits one WRTE per chunk, in order, on behalf of stream localID/remoteID.
func (ts *TransportSession) send(localID, remoteID uint32, b []byte) error {
	if sessionState(ts.state.Load()) == stateClosed {
		return ErrTransportClosed
	}
	max := int(ts.maxPayload.Load())
	if max <= 0 {
		max = FallbackMaxPayload
	}
	if len(b) == 0 {
		return nil
	}
	r := bytes.NewReader(b)
	chunk := make([]byte, max)
	for r.Len() > 0 {
		n, _ := r.Read(chunk)
		if err := ts.writer.WritePacket(CmdWrte, remoteID, localID, chunk[:n]); err != nil {
			return err
		}
		ts.cfg.Metrics().IncrementPacketsOut()
		ts.cfg.Metrics().IncrementBytesOut(int64(n))
	}
	return nil
}

// Close tears the session down: stops the reader (by closing the
// connection), closes every live stream, and transitions to Closed. Safe
// to call multiple times or concurrently with Run.
func (ts *TransportSession) Close() {
	ts.closeOnce.Do(func() {
		ts.state.Store(int32(stateClosed))
		ts.streams.CloseAll()
		ts.conn.Close()
	})
}

// streamSender is the Sender handle injected into each stream's Handler.
// It is the only path a Handler has back to the owning transport,
// enforcing the one-way ownership the design notes call for.
type streamSender struct {
	ts       *TransportSession
	localID  uint32 // the peer's stream id (arg0 from their OPEN)
	remoteID uint32 // our allocated id, set once Open succeeds
}

func (s *streamSender) Send(b []byte) error {
	return s.ts.send(s.localID, s.remoteID, b)
}

func (s *streamSender) Close() {
	stream, ok := s.ts.streams.ByLocal(s.localID)
	if !ok {
		return
	}
	s.ts.closeStream(stream)
	s.ts.writer.WritePacket(CmdClse, s.remoteID, s.localID, nil)
}
