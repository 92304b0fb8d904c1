package adb

import (
	"testing"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	sent   [][]byte
	closed bool
}

func (s *recordingSender) Send(b []byte) error {
	s.sent = append(s.sent, append([]byte(nil), b...))
	return nil
}

func (s *recordingSender) Close() { s.closed = true }

func TestDispatcherRoutesByPrefix(t *testing.T) {
	d := newDispatcher(newFakeBackend(), ApplyOptions(nil), zerolog.Nop())

	tests := []struct {
		service   string
		wantMatch bool
	}{
		{"shell:echo hi", true},
		{"shell:", true},
		{"exec:echo hi", true},
		{"sync:", true},
		{"logcat", true},
		{"logcat:main", true},
		{"bogus:anything", false},
	}

	for _, tt := range tests {
		sender := &recordingSender{}
		handler, matched, err := d.Resolve(tt.service, sender)
		if matched != tt.wantMatch {
			t.Errorf("Resolve(%q) matched = %v, want %v", tt.service, matched, tt.wantMatch)
			continue
		}
		if matched && (handler == nil || err != nil) {
			t.Errorf("Resolve(%q) = handler=%v err=%v, want a non-nil handler and no error", tt.service, handler, err)
		}
	}
}

func TestDispatcherFactoriesDoNoIOBeforeStart(t *testing.T) {
	d := newDispatcher(newFakeBackend(), ApplyOptions(nil), zerolog.Nop())
	sender := &recordingSender{}

	handler, matched, err := d.Resolve("shell:", sender)
	if !matched || err != nil || handler == nil {
		t.Fatalf("Resolve: matched=%v err=%v handler=%v", matched, err, handler)
	}
	if len(sender.sent) != 0 {
		t.Errorf("expected no output before Start(), got %v", sender.sent)
	}

	handler.Start()
	if len(sender.sent) == 0 {
		t.Error("expected the interactive shell to send its prompt on Start()")
	}
}
