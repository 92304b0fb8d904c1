package adb

import "time"

const (
	// DefaultLogcatFastInterval is the tick interval logcat uses while the
	// log ring is actively producing new lines.
	DefaultLogcatFastInterval = 200 * time.Millisecond
	// DefaultLogcatSteadyInterval is the back-off ceiling for logcat's
	// adaptive poller once the ring has gone quiet.
	DefaultLogcatSteadyInterval = 2 * time.Second
	// DefaultLogcatBatch is the number of log lines pulled per tick.
	DefaultLogcatBatch = 5

	// DefaultSyncChunkSize is the RECV outbound DATA chunk size.
	DefaultSyncChunkSize = 64 * 1024

	// DefaultIdleTimeout closes transport sessions that have been silent
	// (no inbound packet) for this long.
	DefaultIdleTimeout = 10 * time.Minute

	// DefaultShutdownTimeout bounds how long Server.Run waits for
	// in-flight sessions to wind down after shutdown is requested.
	DefaultShutdownTimeout = 2 * time.Second

	// DefaultAcceptBurst is the default token-bucket burst for the
	// acceptor's accept-rate limiter.
	DefaultAcceptBurst = 64
)

// Option configures a Server via functional options, each named WithXxx.
type Option func(*Config)

// Config holds runtime settings for a Server. Zero value is unusable;
// build one with defaultConfig() and apply Options on top.
type Config struct {
	logcatFastInterval   time.Duration
	logcatSteadyInterval time.Duration
	logcatBatch          int

	syncChunkSize int

	idleTimeout     time.Duration
	shutdownTimeout time.Duration

	acceptRatePerSec float64
	acceptBurst      int

	recvBytesPerSec int64

	metrics Metrics
}

func defaultConfig() *Config {
	return &Config{
		logcatFastInterval:   DefaultLogcatFastInterval,
		logcatSteadyInterval: DefaultLogcatSteadyInterval,
		logcatBatch:          DefaultLogcatBatch,
		syncChunkSize:        DefaultSyncChunkSize,
		idleTimeout:          DefaultIdleTimeout,
		shutdownTimeout:      DefaultShutdownTimeout,
		acceptRatePerSec:     0, // unlimited by default
		acceptBurst:          DefaultAcceptBurst,
		recvBytesPerSec:      0, // unlimited by default
		metrics:              NewDefaultMetrics(),
	}
}

// ApplyOptions builds a runtime config by applying opts on top of defaults.
func ApplyOptions(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithLogcatInterval overrides the logcat ticker's fast and steady-state
// poll intervals.
func WithLogcatInterval(fast, steady time.Duration) Option {
	return func(c *Config) {
		if fast > 0 {
			c.logcatFastInterval = fast
		}
		if steady > 0 {
			c.logcatSteadyInterval = steady
		}
	}
}

// WithLogcatBatch overrides how many log lines are pulled per logcat tick.
func WithLogcatBatch(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.logcatBatch = n
		}
	}
}

// WithIdleTimeout overrides how long a transport session may go without an
// inbound packet before it is closed. Zero disables the timeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.idleTimeout = d
	}
}

// WithShutdownTimeout overrides how long Server.Run waits for sessions to
// finish closing after shutdown is requested.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// WithAcceptRateLimit caps new-connection acceptance to ratePerSec with the
// given burst, protecting the shared backend from a connection storm. Zero
// ratePerSec disables the limiter (the default).
func WithAcceptRateLimit(ratePerSec float64, burst int) Option {
	return func(c *Config) {
		c.acceptRatePerSec = ratePerSec
		if burst > 0 {
			c.acceptBurst = burst
		}
	}
}

// WithRecvThrottle caps the rate, in bytes/sec, at which sync RECV streams
// emit outbound DATA chunks. Zero (the default) is unlimited.
func WithRecvThrottle(bytesPerSec int64) Option {
	return func(c *Config) {
		c.recvBytesPerSec = bytesPerSec
	}
}

// Metrics returns the configured Metrics sink.
func (c *Config) Metrics() Metrics { return c.metrics }

// WithMetrics installs a custom Metrics sink. The default is an
// in-process atomic-counter implementation.
func WithMetrics(m Metrics) Option {
	return func(c *Config) {
		if m != nil {
			c.metrics = m
		}
	}
}
