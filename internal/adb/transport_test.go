package adb

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/rs/zerolog"
)

func newTestSession(t *testing.T) (client net.Conn, serverDone chan struct{}) {
	t.Helper()
	serverConn, clientConn := net.Pipe()

	cfg := ApplyOptions(nil)
	ts := NewTransportSession(serverConn, newFakeBackend(), cfg, zerolog.Nop(), nil)

	done := make(chan struct{})
	go func() {
		ts.Run()
		close(done)
	}()
	return clientConn, done
}

func readPacket(t *testing.T, r *FrameReader) Packet {
	t.Helper()
	pkt, err := r.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	return pkt
}

// TestHandshake covers scenario S1: client CNXN negotiates a clamped
// max-payload and gets back a banner naming the configured serial.
func TestHandshake(t *testing.T) {
	client, serverDone := newTestSession(t)
	defer client.Close()

	w := NewFrameWriter(client)
	r := NewFrameReader(client, nil)

	if err := w.WritePacket(CmdCnxn, 0x01000000, 256*1024, []byte("host::features=shell\x00")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	reply := readPacket(t, r)
	if reply.Command != CmdCnxn {
		t.Fatalf("expected CNXN reply, got %v", reply.Command)
	}
	if reply.Arg1 > 256*1024 {
		t.Errorf("negotiated max-payload %d exceeds 256KiB", reply.Arg1)
	}
	if !containsAll(string(reply.Payload), "device::", "ro.serialno=FAKE000001") {
		t.Errorf("banner %q missing expected fields", reply.Payload)
	}

	client.Close()
	<-serverDone
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !contains(s, sub) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// TestOneShotShell covers scenario S2.
func TestOneShotShell(t *testing.T) {
	client, serverDone := newTestSession(t)
	defer client.Close()

	w := NewFrameWriter(client)
	r := NewFrameReader(client, nil)

	w.WritePacket(CmdCnxn, 0x01000000, 256*1024, []byte("host::\x00"))
	readPacket(t, r) // CNXN reply

	w.WritePacket(CmdOpen, 7, 0, []byte("shell:echo hi\x00"))

	okay := readPacket(t, r)
	if okay.Command != CmdOkay || okay.Arg1 != 7 {
		t.Fatalf("expected OKAY(_, 7), got %+v", okay)
	}
	localID := okay.Arg0

	wrte := readPacket(t, r)
	if wrte.Command != CmdWrte || string(wrte.Payload) != "hi\n" {
		t.Fatalf("expected WRTE with %q, got %+v", "hi\n", wrte)
	}

	clse := readPacket(t, r)
	if clse.Command != CmdClse || clse.Arg0 != localID || clse.Arg1 != 7 {
		t.Fatalf("expected CLSE(%d, 7), got %+v", localID, clse)
	}

	client.Close()
	<-serverDone
}

// TestOpenUnknownService covers OPEN of an unrecognised service: it gets
// CLSE(0, remote-id) and no stream is allocated.
func TestOpenUnknownService(t *testing.T) {
	client, serverDone := newTestSession(t)
	defer client.Close()

	w := NewFrameWriter(client)
	r := NewFrameReader(client, nil)

	w.WritePacket(CmdCnxn, 0x01000000, 256*1024, []byte("host::\x00"))
	readPacket(t, r)

	w.WritePacket(CmdOpen, 9, 0, []byte("bogus:foo\x00"))
	clse := readPacket(t, r)
	if clse.Command != CmdClse || clse.Arg0 != 0 || clse.Arg1 != 9 {
		t.Fatalf("expected CLSE(0, 9), got %+v", clse)
	}

	client.Close()
	<-serverDone
}

// TestInteractiveShellCtrlC covers scenario S5.
func TestInteractiveShellCtrlC(t *testing.T) {
	client, serverDone := newTestSession(t)
	defer client.Close()

	w := NewFrameWriter(client)
	r := NewFrameReader(client, nil)

	w.WritePacket(CmdCnxn, 0x01000000, 256*1024, []byte("host::\x00"))
	readPacket(t, r)

	w.WritePacket(CmdOpen, 11, 0, []byte("shell:\x00"))
	okay := readPacket(t, r)
	localID := okay.Arg0

	prompt := readPacket(t, r)
	if string(prompt.Payload) != shellPrompt {
		t.Fatalf("expected prompt %q, got %q", shellPrompt, prompt.Payload)
	}

	w.WritePacket(CmdWrte, 11, localID, []byte("ls /nope"))
	readPacket(t, r) // OKAY ack for the WRTE
	w.WritePacket(CmdWrte, 11, localID, []byte{ctrlC})
	readPacket(t, r) // OKAY ack

	out := readPacket(t, r)
	if !contains(string(out.Payload), "^C\r\n") {
		t.Fatalf("expected output to end with ^C\\r\\n, got %q", out.Payload)
	}

	client.Close()
	<-serverDone
}

// TestSyncPushThenPull covers scenario S3: push a small file, then pull it
// back on the same sync stream. Multi-chunk RECV (S4) is not exercised.
func TestSyncPushThenPull(t *testing.T) {
	client, serverDone := newTestSession(t)
	defer client.Close()

	w := NewFrameWriter(client)
	r := NewFrameReader(client, nil)

	w.WritePacket(CmdCnxn, 0x01000000, 256*1024, []byte("host::\x00"))
	readPacket(t, r)

	w.WritePacket(CmdOpen, 21, 0, []byte("sync:\x00"))
	okay := readPacket(t, r)
	localID := okay.Arg0

	send := syncMessage(t, syncTagSend, []byte("/tmp/a,0644"))
	w.WritePacket(CmdWrte, 21, localID, send)
	readPacket(t, r) // OKAY ack

	data := syncMessage(t, syncTagData, []byte("ABC"))
	w.WritePacket(CmdWrte, 21, localID, data)
	readPacket(t, r) // OKAY ack

	done := syncMessage(t, syncTagDone, make([]byte, 4))
	w.WritePacket(CmdWrte, 21, localID, done)
	readPacket(t, r) // OKAY ack

	reply := readPacket(t, r)
	tag, _ := parseSyncMessage(t, reply.Payload)
	if tag != syncTagOkay {
		t.Fatalf("expected sync OKAY after DONE, got tag 0x%x", tag)
	}

	recv := syncMessage(t, syncTagRecv, []byte("/tmp/a"))
	w.WritePacket(CmdWrte, 21, localID, recv)
	readPacket(t, r) // OKAY ack

	dataReply := readPacket(t, r)
	dtag, dpayload := parseSyncMessage(t, dataReply.Payload)
	if dtag != syncTagData || string(dpayload) != "ABC" {
		t.Fatalf("expected DATA(ABC), got tag=0x%x payload=%q", dtag, dpayload)
	}

	doneReply := readPacket(t, r)
	donetag, _ := parseSyncMessage(t, doneReply.Payload)
	if donetag != syncTagDone {
		t.Fatalf("expected DONE after RECV, got tag 0x%x", donetag)
	}

	client.Close()
	<-serverDone
}

func syncMessage(t *testing.T, tag uint32, payload []byte) []byte {
	t.Helper()
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], tag)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func parseSyncMessage(t *testing.T, raw []byte) (uint32, []byte) {
	t.Helper()
	if len(raw) < 8 {
		t.Fatalf("sync message too short: %d bytes", len(raw))
	}
	tag := binary.LittleEndian.Uint32(raw[0:4])
	length := binary.LittleEndian.Uint32(raw[4:8])
	return tag, raw[8 : 8+length]
}
