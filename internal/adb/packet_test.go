package adb

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		cmd     Command
		arg0    uint32
		arg1    uint32
		payload []byte
	}{
		{"empty payload", CmdOkay, 1, 2, nil},
		{"small payload", CmdWrte, 3, 4, []byte("hello")},
		{"cnxn banner", CmdCnxn, 0x01000000, 256 * 1024, []byte("device::ro.serialno=ABC\x00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := Encode(tt.cmd, tt.arg0, tt.arg1, tt.payload)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			pkt, err := Decode(buf)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if pkt.Command != tt.cmd || pkt.Arg0 != tt.arg0 || pkt.Arg1 != tt.arg1 {
				t.Errorf("got %+v, want cmd=%v arg0=%d arg1=%d", pkt, tt.cmd, tt.arg0, tt.arg1)
			}
			if !bytes.Equal(pkt.Payload, tt.payload) {
				t.Errorf("payload mismatch: got %q, want %q", pkt.Payload, tt.payload)
			}
		})
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(CmdWrte, 0, 0, make([]byte, MaxPayload+1))
	if err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestDecodeTamperDetection(t *testing.T) {
	buf, err := Encode(CmdOkay, 1, 2, []byte("payload"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	for i := range buf {
		tampered := append([]byte(nil), buf...)
		tampered[i] ^= 0x01
		if _, err := Decode(tampered); err == nil {
			t.Errorf("bit flip at byte %d: expected decode error, got none", i)
		}
	}
}

func TestChecksum(t *testing.T) {
	if got := checksum([]byte{1, 2, 3}); got != 6 {
		t.Errorf("checksum([1,2,3]) = %d, want 6", got)
	}
	if got := checksum(nil); got != 0 {
		t.Errorf("checksum(nil) = %d, want 0", got)
	}
}

func TestCommandString(t *testing.T) {
	if got := CmdCnxn.String(); got != "CNXN" {
		t.Errorf("CmdCnxn.String() = %q, want CNXN", got)
	}
}
