package adb

import (
	"bytes"
	"context"
	"encoding/binary"
	"strconv"
	"strings"

	"golang.org/x/time/rate"
)

// Sync sub-message tags, each a 4-byte ASCII tag interpreted the same way
// transport command tags are: little-endian u32 over the 4 characters.
const (
	syncTagStat uint32 = 0x54415453 // "STAT"
	syncTagList uint32 = 0x5453494c // "LIST"
	syncTagDent uint32 = 0x544e4544 // "DENT"
	syncTagSend uint32 = 0x444e4553 // "SEND"
	syncTagRecv uint32 = 0x56434552 // "RECV"
	syncTagData uint32 = 0x41544144 // "DATA"
	syncTagDone uint32 = 0x454e4f44 // "DONE"
	syncTagOkay uint32 = 0x59414b4f // "OKAY"
	syncTagQuit uint32 = 0x54495551 // "QUIT"
	syncTagFail uint32 = 0x4c494146 // "FAIL"
)

const syncRecvChunkSize = 64 * 1024

// pendingSend accumulates a SEND's payload until the matching DONE.
type pendingSend struct {
	path string
	mode uint32
	buf  bytes.Buffer
}

// syncStream implements the sync:-service inner sub-protocol: an ASCII
// 4-byte tag plus little-endian length plus payload, framed inside the
// outer transport stream's WRTE payloads.
type syncStream struct {
	backend Backend
	sender  Sender
	limiter *rate.Limiter
	metrics Metrics

	in      bytes.Buffer
	pending *pendingSend
	closed  bool
}

func newSyncStream(backend Backend, cfg *Config, sender Sender) *syncStream {
	s := &syncStream{backend: backend, sender: sender}
	if cfg != nil {
		s.metrics = cfg.Metrics()
		if cfg.recvBytesPerSec > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(cfg.recvBytesPerSec), int(cfg.recvBytesPerSec))
		}
	}
	return s
}

// Start is a no-op: sync only ever reacts to inbound sub-messages, it
// never speaks first.
func (s *syncStream) Start() {}

func (s *syncStream) Deliver(payload []byte) {
	if s.closed {
		return
	}
	s.in.Write(payload)

	for {
		tag, body, ok := s.takeMessage()
		if !ok {
			return
		}
		s.handle(tag, body)
		if s.closed {
			return
		}
	}
}

// takeMessage pops one complete sub-message off the front of s.in, if one
// is fully buffered yet.
func (s *syncStream) takeMessage() (uint32, []byte, bool) {
	raw := s.in.Bytes()
	if len(raw) < 8 {
		return 0, nil, false
	}
	tag := binary.LittleEndian.Uint32(raw[0:4])
	length := binary.LittleEndian.Uint32(raw[4:8])
	if uint64(len(raw)) < 8+uint64(length) {
		return 0, nil, false
	}
	body := make([]byte, length)
	copy(body, raw[8:8+length])
	s.in.Next(int(8 + length))
	return tag, body, true
}

func (s *syncStream) handle(tag uint32, body []byte) {
	switch tag {
	case syncTagStat:
		s.handleStat(string(body))
	case syncTagList:
		s.handleList(string(body))
	case syncTagSend:
		s.handleSend(string(body))
	case syncTagData:
		s.handleData(body)
	case syncTagDone:
		s.handleDone(body)
	case syncTagRecv:
		s.handleRecv(string(body))
	case syncTagQuit:
		s.sender.Close()
		s.closed = true
	default:
		s.fail(ErrSyncMalformed.Error())
	}
}

func (s *syncStream) writeMessage(tag uint32, payload []byte) {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	s.sender.Send(buf)
}

func (s *syncStream) fail(message string) {
	s.writeMessage(syncTagFail, []byte(message))
}

// statPayload renders mode/size/mtime as STAT/DENT expect: three u32 LE
// fields, with POSIX type bits OR'd into mode by the caller.
func statPayload(mode, size, mtime uint32) []byte {
	buf := make([]byte, 12)
	binary.LittleEndian.PutUint32(buf[0:4], mode)
	binary.LittleEndian.PutUint32(buf[4:8], size)
	binary.LittleEndian.PutUint32(buf[8:12], mtime)
	return buf
}

// typedMode OR's the POSIX type bits onto the backend's stored permission
// bits, per the sync wire format.
func typedMode(t NodeType, perm uint32) uint32 {
	switch t {
	case NodeDir:
		return perm | 0o040000
	case NodeSymlink:
		return perm | 0o120000
	default:
		return perm | 0o100000
	}
}

func (s *syncStream) handleStat(path string) {
	st, err := s.backend.Stat(path)
	if err != nil || st.Type == NodeNotFound {
		s.writeMessage(syncTagStat, statPayload(0, 0, 0))
		return
	}
	s.writeMessage(syncTagStat, statPayload(typedMode(st.Type, st.Mode), st.Size, st.Mtime))
}

func (s *syncStream) handleList(path string) {
	entries, err := s.backend.List(path)
	if err != nil {
		s.writeMessage(syncTagDone, nil)
		return
	}
	for _, e := range entries {
		name := []byte(e.Name)
		payload := make([]byte, 16+len(name))
		binary.LittleEndian.PutUint32(payload[0:4], typedMode(e.Type, e.Mode))
		binary.LittleEndian.PutUint32(payload[4:8], e.Size)
		binary.LittleEndian.PutUint32(payload[8:12], e.Mtime)
		binary.LittleEndian.PutUint32(payload[12:16], uint32(len(name)))
		copy(payload[16:], name)
		s.writeMessage(syncTagDent, payload)
	}
	s.writeMessage(syncTagDone, nil)
}

func (s *syncStream) handleSend(spec string) {
	path, modeStr, ok := strings.Cut(spec, ",")
	mode := uint32(0o664)
	if ok {
		if m, err := strconv.ParseUint(modeStr, 8, 32); err == nil {
			mode = uint32(m)
		}
	}
	s.pending = &pendingSend{path: path, mode: mode}
}

func (s *syncStream) handleData(data []byte) {
	if s.pending == nil {
		s.fail(ErrSyncNoActiveSend.Error())
		return
	}
	s.pending.buf.Write(data)
}

func (s *syncStream) handleDone(_ []byte) {
	if s.pending == nil {
		s.fail(ErrSyncNoActiveSend.Error())
		return
	}
	p := s.pending
	s.pending = nil
	if err := s.backend.WriteFile(p.path, p.buf.Bytes(), p.mode); err != nil {
		s.fail(err.Error())
		return
	}
	if s.metrics != nil {
		s.metrics.IncrementSyncTransfers()
	}
	s.writeMessage(syncTagOkay, nil)
}

func (s *syncStream) handleRecv(path string) {
	data, err := s.backend.ReadFile(path)
	if err != nil {
		s.fail(ErrSyncPathNotFound.Error())
		return
	}
	for off := 0; off < len(data); off += syncRecvChunkSize {
		end := off + syncRecvChunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		if s.limiter != nil {
			s.limiter.WaitN(context.Background(), len(chunk))
		}
		s.writeMessage(syncTagData, chunk)
	}
	if s.metrics != nil {
		s.metrics.IncrementSyncTransfers()
	}
	s.writeMessage(syncTagDone, nil)
}

// Close releases any in-progress SEND buffer; the sync protocol has no
// other background worker to stop.
func (s *syncStream) Close() {
	s.pending = nil
	s.closed = true
}
