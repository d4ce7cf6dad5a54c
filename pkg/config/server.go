// Package config parses CLI flags into typed configuration for the
// cmdchat server and client binaries, following the examples/common
// flag-parsing idiom: flag.Func for validated custom types and
// isFlagSet to distinguish an explicit value from a default.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// ServerConfig holds the server's runtime configuration (spec §4.1, §6).
type ServerConfig struct {
	// Host is the interface to listen on (spec §6).
	Host string

	// Port is the TCP port to listen on (spec §6).
	Port int

	// ListenAddr is the derived "host:port" actually passed to the
	// transport listener. ParseServerFlags fills it in from Host/Port;
	// tests that want an ephemeral port may also set it directly.
	ListenAddr string

	// TLSCertFile and TLSKeyFile, set together, enable TLS on the
	// listener (spec §6: both or neither).
	TLSCertFile string
	TLSKeyFile  string

	// HeartbeatInterval is how often the server pings idle connections
	// (spec §4.9).
	HeartbeatInterval time.Duration

	// HeartbeatTimeout is how long the server waits for a pong before
	// terminating a session (spec §4.9).
	HeartbeatTimeout time.Duration

	// MetricsInterval is how often metrics are sampled, 0 disables
	// periodic metrics (spec §6, §4.15).
	MetricsInterval time.Duration

	// LogLevel selects the verbosity of structured logging.
	LogLevel string
}

// DefaultServerConfig returns the server's default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              5050,
		ListenAddr:        "127.0.0.1:5050",
		HeartbeatInterval: 15 * time.Second,
		HeartbeatTimeout:  45 * time.Second,
		MetricsInterval:   0,
		LogLevel:          "info",
	}
}

// ParseServerFlags parses os.Args-style CLI flags into a ServerConfig.
// Call before flag.Parse has otherwise run; it registers flags on
// flag.CommandLine and invokes flag.Parse itself.
//
//	--host               Interface to listen on (default: "127.0.0.1")
//	--port               TCP port to listen on (default: 5050)
//	--certfile           TLS certificate file, requires --keyfile
//	--keyfile            TLS private key file, requires --certfile
//	--heartbeat-interval Ping interval (default: 15s)
//	--heartbeat-timeout  Pong deadline (default: 45s)
//	--metrics-interval   Metrics sample interval, 0 disables (default: 0)
//	--log-level          One of: debug, info, warn, error (default: "info")
func ParseServerFlags() (ServerConfig, error) {
	defaults := DefaultServerConfig()
	cfg := defaults

	flag.StringVar(&cfg.Host, "host", defaults.Host, "interface to listen on")
	flag.IntVar(&cfg.Port, "port", defaults.Port, "TCP port to listen on")
	flag.StringVar(&cfg.TLSCertFile, "certfile", "", "TLS certificate file (requires -keyfile)")
	flag.StringVar(&cfg.TLSKeyFile, "keyfile", "", "TLS private key file (requires -certfile)")
	flag.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", defaults.HeartbeatInterval, "ping interval")
	flag.DurationVar(&cfg.HeartbeatTimeout, "heartbeat-timeout", defaults.HeartbeatTimeout, "pong deadline")
	flag.DurationVar(&cfg.MetricsInterval, "metrics-interval", defaults.MetricsInterval, "metrics sample interval, 0 disables")
	flag.Func("log-level", fmt.Sprintf("log level: debug, info, warn, error (default: %s)", defaults.LogLevel), func(s string) error {
		if !validLogLevel(s) {
			return fmt.Errorf("invalid log level %q", s)
		}
		cfg.LogLevel = s
		return nil
	})

	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return ServerConfig{}, &FlagError{Err: err}
	}

	cfg.ListenAddr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	if cfg.HeartbeatTimeout <= cfg.HeartbeatInterval {
		return ServerConfig{}, newFlagError("heartbeat-timeout (%s) must exceed heartbeat-interval (%s)", cfg.HeartbeatTimeout, cfg.HeartbeatInterval)
	}
	if (cfg.TLSCertFile == "") != (cfg.TLSKeyFile == "") {
		return ServerConfig{}, newFlagError("-certfile and -keyfile must both be set, or neither")
	}

	return cfg, nil
}

func validLogLevel(s string) bool {
	switch s {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// isFlagSet checks if a flag was explicitly set on the command line.
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
