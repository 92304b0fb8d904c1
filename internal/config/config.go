package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-envparse"
)

// Config holds the daemon's top-level runtime settings, populated from
// CLI flags in cmd/mockadbd and optionally overridden by MOCKADBD_-
// prefixed environment variables.
type Config struct {
	Host        string
	Port        int
	DevicePath  string
	Verbose     bool
	LogPretty   bool
	MetricsAddr string

	AcceptRatePerSec float64
	RecvBytesPerSec  int64
}

// Addr renders Host/Port as a dial/listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Port)
	}
	if c.Host == "" {
		return fmt.Errorf("config: host must not be empty")
	}
	return nil
}

// ApplyEnvFile parses an env file in the hashicorp/go-envparse "KEY=VALUE"
// format and overrides c with any MOCKADBD_-prefixed keys found in it.
func (c *Config) ApplyEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("config: open env file: %w", err)
	}
	defer f.Close()

	m, err := envparse.Parse(f)
	if err != nil {
		return fmt.Errorf("config: parse env file: %w", err)
	}
	c.applyEnv(m)
	return nil
}

// ApplyEnviron overrides c with any MOCKADBD_-prefixed variables found in
// the process environment.
func (c *Config) ApplyEnviron() {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			m[k] = v
		}
	}
	c.applyEnv(m)
}

const envPrefix = "MOCKADBD_"

func (c *Config) applyEnv(m map[string]string) {
	if v, ok := m[envPrefix+"HOST"]; ok {
		c.Host = v
	}
	if v, ok := m[envPrefix+"PORT"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			c.Port = n
		}
	}
	if v, ok := m[envPrefix+"CONFIG"]; ok {
		c.DevicePath = v
	}
	if v, ok := m[envPrefix+"VERBOSE"]; ok {
		c.Verbose = v == "1" || v == "true"
	}
	if v, ok := m[envPrefix+"LOG_PRETTY"]; ok {
		c.LogPretty = v == "1" || v == "true"
	}
	if v, ok := m[envPrefix+"METRICS_ADDR"]; ok {
		c.MetricsAddr = v
	}
}
