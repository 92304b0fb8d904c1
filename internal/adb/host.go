package adb

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
)

// ServeConn is the entry point for one freshly accepted connection. Both
// the host text protocol and the binary transport protocol share this
// single TCP port; ServeConn peeks at the first 4 bytes to tell them
// apart before handing off to whichever one actually owns the
// connection.
func ServeConn(conn net.Conn, backend Backend, cfg *Config, logger Logger) {
	peek := make([]byte, 4)
	n, err := io.ReadFull(conn, peek)
	if err != nil {
		conn.Close()
		return
	}

	if looksLikeHexLength(peek[:n]) {
		runHostSession(conn, peek[:n], backend, cfg, logger)
		return
	}

	// Not a valid hex length prefix: these 4 bytes are the start of a
	// binary transport header (a command tag like "CNXN"). Replay them.
	ts := NewTransportSession(conn, backend, cfg, logger, peek[:n])
	ts.Run()
}

// looksLikeHexLength reports whether b's 4 bytes are all ASCII hex
// digits — the host text protocol's length prefix. A binary command tag
// such as "CNXN" or "AUTH" is never valid hex (its bytes include
// uppercase non-hex letters), so this cleanly distinguishes the two
// dialects without any lookahead beyond what was already read.
func looksLikeHexLength(b []byte) bool {
	if len(b) != 4 {
		return false
	}
	for _, c := range b {
		isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
		if !isHex {
			return false
		}
	}
	return true
}

// hostSession runs the host text protocol loop for one connection: each
// request is a 4-hex-digit length followed by a UTF-8 command.
type hostSession struct {
	conn    net.Conn
	r       *bufio.Reader
	backend Backend
	cfg     *Config
	logger  Logger
}

// runHostSession drives the host text request loop, having already
// consumed firstLenHex as the first request's length prefix.
func runHostSession(conn net.Conn, firstLenHex []byte, backend Backend, cfg *Config, logger Logger) {
	hs := &hostSession{conn: conn, r: bufio.NewReader(conn), backend: backend, cfg: cfg, logger: logger}
	if !hs.serveOne(firstLenHex) {
		conn.Close()
		return
	}

	for {
		lenHex := make([]byte, 4)
		if _, err := io.ReadFull(hs.r, lenHex); err != nil {
			conn.Close()
			return
		}
		if !hs.serveOne(lenHex) {
			conn.Close()
			return
		}
	}
}

// serveOne reads and handles one request whose length prefix has already
// been consumed (passed as lenHex). It returns false when the connection
// should close — either because the client asked (kill) or because the
// request switched into binary transport mode (in which case the
// transport session owns the connection going forward and this function
// must not close it).
func (hs *hostSession) serveOne(lenHex []byte) bool {
	length, err := strconv.ParseUint(string(lenHex), 16, 32)
	if err != nil {
		hs.fail(ErrHostBadLength.Error())
		return false
	}
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(hs.r, body); err != nil {
			return false
		}
	}

	cmd := string(body)
	return hs.handle(cmd)
}

func (hs *hostSession) okay(payload string) {
	fmt.Fprintf(hs.conn, "OKAY%04x%s", len(payload), payload)
}

func (hs *hostSession) fail(message string) {
	fmt.Fprintf(hs.conn, "FAIL%04x%s", len(message), message)
}

// handle dispatches one decoded host command. It returns true to keep the
// text-protocol loop running, false to stop (connection closed, or
// ownership handed to a binary TransportSession).
func (hs *hostSession) handle(cmd string) bool {
	switch {
	case cmd == "version":
		hs.okay("001f")
		return true

	case cmd == "devices" || cmd == "devices-l":
		hs.okay(hs.devicesReply(cmd == "devices-l"))
		return true

	case cmd == "get-state":
		hs.okay(hs.backend.State())
		return true

	case cmd == "get-serialno":
		hs.okay(hs.backend.Serial())
		return true

	case cmd == "transport" || cmd == "transport-any" || cmd == "transport-usb" || cmd == "transport-local":
		hs.okay("")
		ts := NewTransportSession(hs.conn, hs.backend, hs.cfg, hs.logger, drainBuffered(hs.r))
		ts.Run()
		return false

	case strings.HasPrefix(cmd, "host-serial:"):
		return hs.handleHostSerial(cmd)

	case strings.HasPrefix(cmd, "forward:") || strings.HasPrefix(cmd, "forward:norebind:"):
		hs.handleForward(hs.backend.Serial(), strings.TrimPrefix(cmd, "forward:"))
		return true

	case strings.HasPrefix(cmd, "forward-remove:"):
		local := strings.TrimPrefix(cmd, "forward-remove:")
		if err := hs.backend.ForwardRemove(local); err != nil {
			hs.fail(err.Error())
		} else {
			hs.okay("")
		}
		return true

	case cmd == "list-forward":
		hs.okay(hs.listForwardReply())
		return true

	case cmd == "features":
		hs.okay("")
		return true

	case cmd == "kill":
		hs.okay("")
		return false

	case strings.HasPrefix(cmd, "reboot"):
		hs.okay("")
		return true

	default:
		hs.fail(fmt.Sprintf("%s: %s", ErrHostUnknownCmd.Error(), cmd))
		return true
	}
}

// drainBuffered returns whatever bytes are already sitting in r's buffer
// (read-ahead past the last request) so they can be replayed as the first
// bytes of the binary transport stream once we hand the connection off.
func drainBuffered(r *bufio.Reader) []byte {
	n := r.Buffered()
	if n == 0 {
		return nil
	}
	b := make([]byte, n)
	io.ReadFull(r, b)
	return b
}

func (hs *hostSession) devicesReply(long bool) string {
	var b strings.Builder
	serial := hs.backend.Serial()
	if long {
		fmt.Fprintf(&b, "%s\tdevice product:%s model:%s device:%s\n", serial, serial, serial, serial)
	} else {
		fmt.Fprintf(&b, "%s\tdevice\n", serial)
	}
	return b.String()
}

// handleHostSerial verifies the request's serial matches the configured
// device, then recurses into the inner command.
func (hs *hostSession) handleHostSerial(cmd string) bool {
	rest := strings.TrimPrefix(cmd, "host-serial:")
	serial, inner, ok := strings.Cut(rest, ":")
	if !ok {
		hs.fail(ErrHostBadSerial.Error())
		return true
	}
	if serial != hs.backend.Serial() {
		hs.fail(ErrHostBadSerial.Error())
		return true
	}
	return hs.handle(inner)
}

// handleForward parses "[norebind:]<local>;<remote>" and registers the rule.
func (hs *hostSession) handleForward(serial, spec string) {
	noRebind := false
	if strings.HasPrefix(spec, "norebind:") {
		noRebind = true
		spec = strings.TrimPrefix(spec, "norebind:")
	}
	local, remote, ok := strings.Cut(spec, ";")
	if !ok {
		hs.fail(ErrSyncMalformed.Error())
		return
	}
	if err := hs.backend.ForwardAdd(serial, local, remote, noRebind); err != nil {
		hs.fail(err.Error())
		return
	}
	spawnForwarder(local, remote, hs.logger)
	hs.okay("")
}

func (hs *hostSession) listForwardReply() string {
	var b strings.Builder
	for _, r := range hs.backend.ForwardList() {
		fmt.Fprintf(&b, "%s %s %s\n", r.Serial, r.Local, r.Remote)
	}
	return b.String()
}
