package adb

import (
	"bytes"
	"io"
	"testing"
)

func TestFrameReaderReadsExactlyOnePacket(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)
	if err := fw.WritePacket(CmdOkay, 1, 2, []byte("hi")); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	if err := fw.WritePacket(CmdClse, 3, 4, nil); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	fr := NewFrameReader(&buf, nil)
	first, err := fr.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket (1st): %v", err)
	}
	if first.Command != CmdOkay || string(first.Payload) != "hi" {
		t.Errorf("first packet = %+v", first)
	}

	second, err := fr.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket (2nd): %v", err)
	}
	if second.Command != CmdClse {
		t.Errorf("second packet = %+v", second)
	}

	if _, err := fr.ReadPacket(); err != io.EOF {
		t.Errorf("expected io.EOF at end of stream, got %v", err)
	}
}

func TestFrameReaderPrefixReplay(t *testing.T) {
	full, err := Encode(CmdCnxn, 1, 2, []byte("banner"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	prefix, rest := full[:4], full[4:]

	fr := NewFrameReader(bytes.NewReader(rest), prefix)
	pkt, err := fr.ReadPacket()
	if err != nil {
		t.Fatalf("ReadPacket: %v", err)
	}
	if pkt.Command != CmdCnxn || string(pkt.Payload) != "banner" {
		t.Errorf("got %+v", pkt)
	}
}

func TestFrameReaderShortHeaderIsEOF(t *testing.T) {
	fr := NewFrameReader(bytes.NewReader([]byte{1, 2, 3}), nil)
	if _, err := fr.ReadPacket(); err != io.EOF {
		t.Errorf("expected io.EOF for truncated header, got %v", err)
	}
}

func TestFrameWriterSerializesConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFrameWriter(&buf)

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func(n int) {
			fw.WritePacket(CmdWrte, uint32(n), uint32(n), bytes.Repeat([]byte{byte(n)}, 16))
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	fr := NewFrameReader(&buf, nil)
	count := 0
	for {
		pkt, err := fr.ReadPacket()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadPacket: %v", err)
		}
		if len(pkt.Payload) != 16 {
			t.Errorf("interleaved payload: len=%d", len(pkt.Payload))
		}
		count++
	}
	if count != 8 {
		t.Errorf("got %d packets, want 8", count)
	}
}
