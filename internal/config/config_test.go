package config

import "testing"

func TestConfigAddr(t *testing.T) {
	c := &Config{Host: "127.0.0.1", Port: 5037}
	if got := c.Addr(); got != "127.0.0.1:5037" {
		t.Errorf("Addr() = %q, want 127.0.0.1:5037", got)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		c       Config
		wantErr bool
	}{
		{"valid", Config{Host: "127.0.0.1", Port: 5037}, false},
		{"zero port", Config{Host: "127.0.0.1", Port: 0}, true},
		{"port too large", Config{Host: "127.0.0.1", Port: 70000}, true},
		{"empty host", Config{Host: "", Port: 5037}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyEnvironOverridesFromPrefixedVars(t *testing.T) {
	t.Setenv("MOCKADBD_HOST", "0.0.0.0")
	t.Setenv("MOCKADBD_PORT", "6000")
	t.Setenv("MOCKADBD_VERBOSE", "true")

	c := &Config{Host: "127.0.0.1", Port: 5037}
	c.ApplyEnviron()

	if c.Host != "0.0.0.0" {
		t.Errorf("Host = %q, want 0.0.0.0", c.Host)
	}
	if c.Port != 6000 {
		t.Errorf("Port = %d, want 6000", c.Port)
	}
	if !c.Verbose {
		t.Error("Verbose = false, want true")
	}
}

func TestDefaultDescriptorIsSelfConsistent(t *testing.T) {
	d := DefaultDescriptor()
	if d.Device.Serial == "" {
		t.Error("DefaultDescriptor must seed a non-empty serial")
	}
	if len(d.Filesystem) == 0 {
		t.Error("DefaultDescriptor must seed at least one filesystem entry")
	}
}
