// Command mockadbd runs a mock ADB daemon against a simulated device,
// for exercising adb-based tooling without real hardware.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/coldharbor/mockadbd/internal/adb"
	"github.com/coldharbor/mockadbd/internal/backend"
	"github.com/coldharbor/mockadbd/internal/config"
)

var opt struct {
	Host        string
	Port        int
	DevicePath  string
	Verbose     bool
	LogPretty   bool
	MetricsAddr string
	EnvFile     string
}

func init() {
	pflag.StringVar(&opt.Host, "host", "127.0.0.1", "address to bind the ADB listener to")
	pflag.IntVar(&opt.Port, "port", 5037, "port to bind the ADB listener to")
	pflag.StringVar(&opt.DevicePath, "config", "", "path to a YAML device descriptor (optional)")
	pflag.BoolVar(&opt.Verbose, "verbose", false, "raise the log level to debug")
	pflag.BoolVar(&opt.LogPretty, "log-pretty", false, "use a colorized console log writer instead of JSON")
	pflag.StringVar(&opt.MetricsAddr, "metrics-addr", "", "optional address for a debug/metrics HTTP listener")
	pflag.StringVar(&opt.EnvFile, "env-file", "", "optional MOCKADBD_-prefixed env file overriding the above")
}

func main() {
	pflag.Parse()

	cfg := &config.Config{
		Host:        opt.Host,
		Port:        opt.Port,
		DevicePath:  opt.DevicePath,
		Verbose:     opt.Verbose,
		LogPretty:   opt.LogPretty,
		MetricsAddr: opt.MetricsAddr,
	}
	if opt.EnvFile != "" {
		if err := cfg.ApplyEnvFile(opt.EnvFile); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg.ApplyEnviron()
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger := adb.NewLogger(cfg.LogPretty, cfg.Verbose)

	desc := config.DefaultDescriptor()
	if cfg.DevicePath != "" {
		loaded, err := config.LoadDescriptor(cfg.DevicePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: load device descriptor: %v\n", err)
			os.Exit(1)
		}
		desc = loaded
	}
	device := backend.New(desc)

	metrics := adb.NewVMMetrics()
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			metrics.WritePrometheus(w)
		})
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics: listening")
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				logger.Warn().Err(err).Msg("metrics: listener exited")
			}
		}()
	}

	server := adb.NewServer(cfg.Addr(), device, logger, adb.WithMetrics(metrics))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: run server: %v\n", err)
		os.Exit(1)
	}
}
