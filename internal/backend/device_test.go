package backend

import (
	"strings"
	"testing"

	"github.com/coldharbor/mockadbd/internal/config"
)

func testDevice() *Device {
	return New(config.Descriptor{
		Device: config.DeviceInfo{
			Serial: "TESTSERIAL01",
			Model:  "TestPhone",
		},
		Filesystem: []config.FSNode{
			{Path: "/data/local/tmp/hello.txt", Type: "file", Content: "hi there"},
		},
		Logs: []string{"boot complete", "wifi connected"},
	})
}

func TestDeviceSeedsBannerProperties(t *testing.T) {
	d := testDevice()
	props := d.BannerProperties()
	if props["ro.serialno"] != "TESTSERIAL01" {
		t.Errorf("ro.serialno = %q, want TESTSERIAL01", props["ro.serialno"])
	}
	if props["ro.product.model"] != "TestPhone" {
		t.Errorf("ro.product.model = %q, want TestPhone", props["ro.product.model"])
	}
}

func TestDeviceShellCatSeededFile(t *testing.T) {
	d := testDevice()
	result, err := d.ShellExecute("/", "cat /data/local/tmp/hello.txt")
	if err != nil {
		t.Fatalf("ShellExecute: %v", err)
	}
	if string(result.Stdout) != "hi there" {
		t.Errorf("stdout = %q, want %q", result.Stdout, "hi there")
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestDeviceShellUnknownCommand(t *testing.T) {
	d := testDevice()
	result, err := d.ShellExecute("/", "bogus-tool --flag")
	if err != nil {
		t.Fatalf("ShellExecute: %v", err)
	}
	if result.ExitCode != 127 {
		t.Errorf("exit code = %d, want 127", result.ExitCode)
	}
	if !strings.Contains(string(result.Stderr), "not found") {
		t.Errorf("stderr = %q, want it to mention not found", result.Stderr)
	}
}

func TestDeviceShellCdThenPwd(t *testing.T) {
	d := testDevice()
	result, err := d.ShellExecute("/", "cd /data/local/tmp; pwd")
	if err != nil {
		t.Fatalf("ShellExecute: %v", err)
	}
	if result.NewCwd != "/data/local/tmp" {
		t.Errorf("NewCwd = %q, want /data/local/tmp", result.NewCwd)
	}
	if strings.TrimSpace(string(result.Stdout)) != "/data/local/tmp" {
		t.Errorf("stdout = %q, want /data/local/tmp", result.Stdout)
	}
}

func TestDeviceGetSetProp(t *testing.T) {
	d := testDevice()
	d.SetProp("debug.myflag", "1")
	v, ok := d.GetProp("debug.myflag")
	if !ok || v != "1" {
		t.Errorf("GetProp after SetProp = %q, %v", v, ok)
	}
}

func TestDeviceLogNextCyclesForever(t *testing.T) {
	d := testDevice()
	lines := d.LogNext(5)
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	if lines[0] != "boot complete" || lines[2] != "boot complete" {
		t.Errorf("expected the 2-line ring to repeat, got %v", lines)
	}
}

func TestDeviceForwardAddThenList(t *testing.T) {
	d := testDevice()
	if err := d.ForwardAdd("TESTSERIAL01", "tcp:5555", "tcp:5555", false); err != nil {
		t.Fatalf("ForwardAdd: %v", err)
	}
	rules := d.ForwardList()
	if len(rules) != 1 || rules[0].Local != "tcp:5555" {
		t.Errorf("got %+v, want one rule for tcp:5555", rules)
	}
}
