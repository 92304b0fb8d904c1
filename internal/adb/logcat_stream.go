package adb

import (
	"strings"
	"sync"
)

// logcatStream tails the backend's log ring on a background goroutine,
// pushing newly available lines as one UTF-8 chunk per tick. The ticker
// backs off via AdaptivePoll when the ring has nothing new, and resets to
// the fast interval as soon as it sees fresh lines again.
type logcatStream struct {
	backend Backend
	sender  Sender
	batch   int
	poll    *AdaptivePoll

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newLogcatStream(backend Backend, cfg *Config, sender Sender) *logcatStream {
	fast, steady, batch := DefaultLogcatFastInterval, DefaultLogcatSteadyInterval, DefaultLogcatBatch
	if cfg != nil {
		fast, steady, batch = cfg.logcatFastInterval, cfg.logcatSteadyInterval, cfg.logcatBatch
	}
	return &logcatStream{
		backend: backend,
		sender:  sender,
		batch:   batch,
		poll:    NewAdaptivePoll(fast, steady),
		done:    make(chan struct{}),
	}
}

// Start spawns the background producer once OKAY for the OPEN has been
// sent, so the peer never sees log output race ahead of the ack.
func (s *logcatStream) Start() {
	go s.run()
}

func (s *logcatStream) run() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		lines := s.backend.LogNext(s.batch)
		if len(lines) > 0 {
			s.sender.Send([]byte(strings.Join(lines, "\n") + "\n"))
			s.poll.Reset()
		}
		s.poll.Sleep()
	}
}

// Deliver watches for Ctrl-C, which closes the stream early; logcat
// otherwise ignores inbound bytes.
func (s *logcatStream) Deliver(payload []byte) {
	for _, b := range payload {
		if b == ctrlC {
			s.sender.Close()
			return
		}
	}
}

// Close stops the background producer. Safe to call more than once.
func (s *logcatStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
