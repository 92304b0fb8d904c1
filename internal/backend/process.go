package backend

import (
	"sync"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/coldharbor/mockadbd/internal/adb"
)

// processTable backs ps/top. If the device descriptor seeded explicit
// processes, those are returned verbatim; otherwise it falls back to a
// snapshot of the host machine's real processes via gopsutil, so a
// zero-config run doesn't look like an empty device — this is flavor
// only, no test depends on it.
type processTable struct {
	mu    sync.RWMutex
	seeds []adb.ProcessInfo
}

func newProcessTable() *processTable {
	return &processTable{}
}

func (t *processTable) seed(pid int, user, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seeds = append(t.seeds, adb.ProcessInfo{PID: pid, User: user, Name: name})
}

func (t *processTable) snapshot() []adb.ProcessInfo {
	t.mu.RLock()
	seeded := append([]adb.ProcessInfo(nil), t.seeds...)
	t.mu.RUnlock()

	if len(seeded) > 0 {
		return seeded
	}
	return hostProcessSnapshot()
}

// hostProcessSnapshot lists the real host's processes through gopsutil.
// Errors (permission, platform quirks) just yield an empty list — ps/top
// degrading gracefully is preferable to failing the shell command.
func hostProcessSnapshot() []adb.ProcessInfo {
	procs, err := process.Processes()
	if err != nil {
		return nil
	}

	out := make([]adb.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		user, _ := p.Username()
		cpuPct, _ := p.CPUPercent()
		memInfo, _ := p.MemoryInfo()
		var rss uint64
		if memInfo != nil {
			rss = memInfo.RSS
		}
		out = append(out, adb.ProcessInfo{
			PID:    int(p.Pid),
			User:   user,
			Name:   name,
			CPU:    cpuPct,
			MemRSS: rss,
		})
	}
	return out
}
