package adb

import (
	"fmt"
	"sync"
)

// Sender is the non-owning handle a transport session injects into every
// stream it creates. The transport owns the stream; the stream only ever
// reaches back through Sender, never through a pointer to the transport
// itself — this keeps ownership one-way (see design notes on cyclic
// transport/stream references).
type Sender interface {
	// Send transmits b as the stream's outbound payload, segmented into
	// WRTE packets of at most the session's negotiated max-payload.
	Send(b []byte) error
	// Close tells the transport this stream is finished; the transport
	// replies CLSE to the peer and removes the stream from its table.
	Close()
}

// Handler is implemented by each service (shell, exec, sync, logcat). The
// transport's stream registry owns the Stream; Handler only reacts to
// bytes arriving from the peer and to the stream closing.
//
// Construction must not perform any I/O through Sender — the transport
// builds a Handler before it has replied OKAY to the peer's OPEN, and
// only calls Start once that OKAY is on the wire, so the peer always
// sees OKAY before any stream output.
type Handler interface {
	// Start is called once, right after the transport has sent OKAY for
	// this stream's OPEN. One-shot handlers do their work and close
	// themselves here; others (interactive shell, logcat) use it to send
	// their first prompt or spawn their background producer.
	Start()
	// Deliver is called with each WRTE payload the peer sends on this
	// stream, in order.
	Deliver(payload []byte)
	// Close releases any background workers and backend handles this
	// handler owns (log producers, pending SEND buffers). Called at most
	// once; implementations must tolerate being called when already idle.
	Close()
}

// Factory builds a Handler for a newly OPENed service, given the
// requested service string (e.g. "shell:ls -l") and the Sender the
// handler should use to talk back to its peer.
type Factory func(service string, sender Sender) (Handler, error)

// serviceRoute pairs a service-name prefix with the factory that
// constructs its handler. Routes are consulted in order; the first
// matching prefix wins. This is the explicit registry called for in the
// design notes in place of dynamic dispatch-by-name.
type serviceRoute struct {
	prefix  string
	factory Factory
}

// Stream is one logical conversation multiplexed over a transport
// session: a local ID assigned by the peer, a remote ID we allocated, the
// requested service name, and the Handler servicing it.
type Stream struct {
	LocalID  uint32 // peer's stream id (their arg0 in OPEN)
	RemoteID uint32 // our allocated id
	Service  string
	Handler  Handler

	mu     sync.Mutex
	closed bool
}

func (s *Stream) markClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	return true
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// streamRegistry owns the set of open streams within one transport
// session, keyed both by local (peer-assigned) and remote (our-assigned)
// IDs, and allocates fresh remote IDs from a per-session monotonic
// counter starting at 1.
type streamRegistry struct {
	mu       sync.Mutex
	byLocal  map[uint32]*Stream
	byRemote map[uint32]*Stream
	nextID   uint32
}

func newStreamRegistry() *streamRegistry {
	return &streamRegistry{
		byLocal:  make(map[uint32]*Stream),
		byRemote: make(map[uint32]*Stream),
		nextID:   1,
	}
}

// Open allocates a remote ID for localID and registers s. It returns an
// error if localID is already open, per the "OPEN while already open on
// that ID" protocol violation (logged and discarded by the caller, never
// fatal to the session).
func (r *streamRegistry) Open(localID uint32, service string, handler Handler) (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byLocal[localID]; exists {
		return nil, fmt.Errorf("%w: local id %d", ErrStreamIDReused, localID)
	}

	remoteID := r.nextID
	r.nextID++

	s := &Stream{LocalID: localID, RemoteID: remoteID, Service: service, Handler: handler}
	r.byLocal[localID] = s
	r.byRemote[remoteID] = s
	return s, nil
}

// ByLocal looks up a stream by the peer-assigned ID carried in WRTE/CLSE
// packets the peer sends us.
func (r *streamRegistry) ByLocal(localID uint32) (*Stream, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byLocal[localID]
	return s, ok
}

// Remove deletes s from both tables. It is idempotent: removing an
// already-removed stream is a no-op, satisfying the idempotent-close
// invariant when CLSE arrives twice for the same stream.
func (r *streamRegistry) Remove(s *Stream) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byLocal, s.LocalID)
	delete(r.byRemote, s.RemoteID)
}

// CloseAll closes every open stream's handler and empties the tables,
// used when the owning transport session tears down.
func (r *streamRegistry) CloseAll() {
	r.mu.Lock()
	streams := make([]*Stream, 0, len(r.byLocal))
	for _, s := range r.byLocal {
		streams = append(streams, s)
	}
	r.byLocal = make(map[uint32]*Stream)
	r.byRemote = make(map[uint32]*Stream)
	r.mu.Unlock()

	for _, s := range streams {
		if s.markClosed() {
			s.Handler.Close()
		}
	}
}

// Len reports the number of currently open streams, used by tests and by
// the acceptor's diagnostics.
func (r *streamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byLocal)
}
