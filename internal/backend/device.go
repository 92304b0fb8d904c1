package backend

import (
	"sync"

	"github.com/coldharbor/mockadbd/internal/adb"
	"github.com/coldharbor/mockadbd/internal/config"
)

// Device is the concrete simulated device: it implements adb.Backend and
// is the only type in this package that reaches outside it, consumed
// exclusively through that interface by internal/adb.
type Device struct {
	mu sync.RWMutex

	serial       string
	model        string
	manufacturer string
	androidVer   string
	sdkVer       string
	kernelVer    string

	properties map[string]string
	packages   []string
	history    []string
	logs       []string
	logCursor  int

	fs *filesystem

	forward *forwardTable
	procs   *processTable
}

// New builds a Device seeded from a config.Descriptor (either loaded from
// a YAML file, or config.DefaultDescriptor() for a zero-config run).
func New(desc config.Descriptor) *Device {
	d := &Device{
		serial:       desc.Device.Serial,
		model:        desc.Device.Model,
		manufacturer: desc.Device.Manufacturer,
		androidVer:   desc.Device.AndroidVersion,
		sdkVer:       desc.Device.SDKVersion,
		kernelVer:    desc.Device.KernelVersion,
		properties:   make(map[string]string),
		packages:     append([]string(nil), desc.Packages...),
		logs:         append([]string(nil), desc.Logs...),
		fs:           newFilesystem(),
		forward:      newForwardTable(),
		procs:        newProcessTable(),
	}
	for k, v := range desc.Properties {
		d.properties[k] = v
	}
	d.properties["ro.product.name"] = d.model
	d.properties["ro.product.model"] = d.model
	d.properties["ro.product.manufacturer"] = d.manufacturer
	d.properties["ro.serialno"] = d.serial
	d.properties["ro.build.version.release"] = d.androidVer
	d.properties["ro.build.version.sdk"] = d.sdkVer
	d.properties["ro.kernel.version"] = d.kernelVer

	for _, n := range desc.Filesystem {
		var kind adb.NodeType
		switch n.Type {
		case "dir":
			kind = adb.NodeDir
		case "symlink":
			kind = adb.NodeSymlink
		default:
			kind = adb.NodeFile
		}
		d.fs.Seed(n.Path, kind, []byte(n.Content), n.Target, n.Mode)
	}
	for _, p := range desc.Processes {
		d.procs.seed(p.PID, p.User, p.Name)
	}

	return d
}

func (d *Device) Serial() string { return d.serial }

func (d *Device) State() string { return "device" }

func (d *Device) BannerProperties() map[string]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.properties))
	for k, v := range d.properties {
		out[k] = v
	}
	return out
}

func (d *Device) VersionID() string { return "001f" }

func (d *Device) Stat(p string) (adb.StatResult, error) { return d.fs.Stat(p) }

func (d *Device) List(p string) ([]adb.DirEntry, error) { return d.fs.List(p) }

func (d *Device) ReadFile(p string) ([]byte, error) { return d.fs.ReadFile(p) }

func (d *Device) WriteFile(p string, data []byte, mode uint32) error {
	return d.fs.WriteFile(p, data, mode)
}

func (d *Device) GetProp(key string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	v, ok := d.properties[key]
	return v, ok
}

func (d *Device) SetProp(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.properties[key] = value
}

func (d *Device) Packages() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, len(d.packages))
	copy(out, d.packages)
	return out
}

func (d *Device) Processes() []adb.ProcessInfo {
	return d.procs.snapshot()
}

func (d *Device) LogNext(count int) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nextLogLocked(count)
}

func (d *Device) nextLogLocked(count int) []string {
	if len(d.logs) == 0 || count <= 0 {
		return nil
	}
	out := make([]string, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, d.logs[d.logCursor%len(d.logs)])
		d.logCursor++
	}
	return out
}

func (d *Device) ForwardAdd(serial, local, remote string, noRebind bool) error {
	return d.forward.add(serial, local, remote, noRebind)
}

func (d *Device) ForwardRemove(local string) error {
	return d.forward.remove(local)
}

func (d *Device) ForwardList() []adb.ForwardRule {
	return d.forward.list()
}
