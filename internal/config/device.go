// Package config loads the mockadbd server's runtime settings: flags and
// environment first, then the optional YAML device descriptor that seeds
// the simulated backend.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FSNode is one seed filesystem entry in the device descriptor.
type FSNode struct {
	Path    string `yaml:"path"`
	Type    string `yaml:"type"` // "dir", "file", or "symlink"
	Content string `yaml:"content,omitempty"`
	Target  string `yaml:"target,omitempty"` // symlink destination
	Mode    uint32 `yaml:"mode,omitempty"`
}

// ProcessSeed is one seed row of the device's process table.
type ProcessSeed struct {
	PID  int    `yaml:"pid"`
	User string `yaml:"user"`
	Name string `yaml:"name"`
}

// DeviceInfo carries the identity fields that make up the CNXN banner.
type DeviceInfo struct {
	Serial         string `yaml:"serial"`
	Model          string `yaml:"model"`
	Manufacturer   string `yaml:"manufacturer"`
	AndroidVersion string `yaml:"android_version"`
	SDKVersion     string `yaml:"sdk_version"`
	KernelVersion  string `yaml:"kernel_version"`
}

// Descriptor is the full YAML-decoded device configuration, mirroring
// adb_server/config.py + MockDevice.from_config in the grounding corpus's
// original Python source but as a typed struct rather than a dynamic
// dict.
type Descriptor struct {
	Device     DeviceInfo        `yaml:"device"`
	Properties map[string]string `yaml:"properties"`
	Filesystem []FSNode          `yaml:"filesystem"`
	Packages   []string          `yaml:"packages"`
	Processes  []ProcessSeed     `yaml:"processes"`
	Logs       []string          `yaml:"logs"`
}

// DefaultDescriptor is used when no --config file is given, so the daemon
// is usable out of the box.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		Device: DeviceInfo{
			Serial:         "MOCK123456",
			Model:          "MockPhone",
			Manufacturer:   "MockMaker",
			AndroidVersion: "12",
			SDKVersion:     "31",
			KernelVersion:  "5.4.0",
		},
		Properties: map[string]string{
			"ro.product.device": "mockdevice",
		},
		Filesystem: []FSNode{
			{Path: "/sdcard", Type: "dir"},
			{Path: "/sdcard/readme.txt", Type: "file", Content: "hello\n"},
		},
		Logs: []string{
			"01-01 00:00:00.000  1000  1000 I ActivityManager: boot",
		},
	}
}

// LoadDescriptor reads and decodes a device descriptor YAML file.
func LoadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	f, err := os.Open(path)
	if err != nil {
		return d, fmt.Errorf("config: open device descriptor: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&d); err != nil {
		return d, fmt.Errorf("config: parse device descriptor: %w", err)
	}
	return d, nil
}
