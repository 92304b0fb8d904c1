package backend

import (
	"fmt"
	"sync"

	"github.com/coldharbor/mockadbd/internal/adb"
)

// forwardTable is the per-backend set of registered port-forwarding
// rules, mutated by host-text forward:/forward-remove:/list-forward
// commands. The actual bidirectional pipe listener lives in
// internal/adb (it only needs the rule's local/remote specs, not this
// bookkeeping), so this table is pure administration.
type forwardTable struct {
	mu    sync.Mutex
	rules map[string]adb.ForwardRule // keyed by local spec
}

func newForwardTable() *forwardTable {
	return &forwardTable{rules: make(map[string]adb.ForwardRule)}
}

func (t *forwardTable) add(serial, local, remote string, noRebind bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if existing, ok := t.rules[local]; ok && noRebind {
		return fmt.Errorf("forward: %s already bound to %s", local, existing.Remote)
	}
	t.rules[local] = adb.ForwardRule{Serial: serial, Local: local, Remote: remote, NoRebind: noRebind}
	return nil
}

func (t *forwardTable) remove(local string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rules[local]; !ok {
		return fmt.Errorf("forward: no rule bound to %s", local)
	}
	delete(t.rules, local)
	return nil
}

func (t *forwardTable) list() []adb.ForwardRule {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]adb.ForwardRule, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r)
	}
	return out
}
