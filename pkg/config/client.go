package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// ClientConfig holds the client's runtime configuration (spec §4.1, §6).
type ClientConfig struct {
	// Host is the server's interface/hostname (spec §6).
	Host string

	// Port is the server's TCP port (spec §6).
	Port int

	// ServerAddr is the derived "host:port" actually dialed.
	// ParseClientFlags fills it in from Host/Port.
	ServerAddr string

	// Name is the display name presented at handshake.
	Name string

	// Room is the room joined at handshake.
	Room string

	// Token is an optional bearer credential forwarded in the hello
	// envelope (spec §4.2); empty if unused.
	Token string

	// RenderMode selects the client's output style: "rich", "minimal",
	// or "json" (spec's render component).
	RenderMode string

	// BufferSize bounds the client's outbound send queue, in envelopes
	// (spec §6: 10..1000).
	BufferSize int

	// TLS enables a TLS dial to the server (spec §6).
	TLS bool

	// TLSInsecure disables server certificate verification when TLS is
	// enabled. Intended for local/self-signed testing only.
	TLSInsecure bool

	// CAFile, if set, is a PEM file of additional trusted CAs used to
	// verify the server's certificate.
	CAFile string

	// Quiet suppresses the connect and reconnect status lines; a final
	// give-up error is still returned to the caller.
	Quiet bool

	// HistoryFile is an optional path to an encrypted append-only
	// transcript file (spec §4.1.1 / §6.1); empty disables history.
	HistoryFile string

	// HistoryPassphrase derives the history file's encryption key.
	HistoryPassphrase string

	// ReconnectMaxElapsed bounds the total time spent retrying a lost
	// connection before giving up; 0 means retry indefinitely.
	ReconnectMaxElapsed time.Duration
}

// DefaultClientConfig returns the client's default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Host:                "127.0.0.1",
		Port:                5050,
		ServerAddr:          "127.0.0.1:5050",
		Room:                "lobby",
		RenderMode:          "rich",
		BufferSize:          64,
		ReconnectMaxElapsed: 0,
	}
}

// ParseClientFlags parses CLI flags into a ClientConfig.
//
//	--host                 Server interface/hostname (default: "127.0.0.1")
//	--port                 Server TCP port (default: 5050)
//	--name                 Display name (required)
//	--room                 Room to join (default: "lobby")
//	--token                Optional bearer token
//	--renderer             Render mode: rich, minimal, json (default: "rich")
//	--buffer-size          Outbound queue depth, 10..1000 (default: 64)
//	--tls                  Dial the server over TLS
//	--tls-insecure         Skip server certificate verification (requires --tls)
//	--ca-file              PEM file of additional trusted CAs (requires --tls)
//	--quiet-reconnect      Suppress reconnect chatter
//	--history-file         Path to encrypted history file (empty disables)
//	--history-passphrase   Passphrase used to derive the history file key
//	--reconnect-max-elapsed  Give up after this long retrying, 0 = never
func ParseClientFlags() (ClientConfig, error) {
	defaults := DefaultClientConfig()
	cfg := defaults

	flag.StringVar(&cfg.Host, "host", defaults.Host, "server interface/hostname")
	flag.IntVar(&cfg.Port, "port", defaults.Port, "server TCP port")
	flag.StringVar(&cfg.Name, "name", "", "display name")
	flag.StringVar(&cfg.Room, "room", defaults.Room, "room to join")
	flag.StringVar(&cfg.Token, "token", "", "optional bearer token")
	flag.Func("renderer", "render mode: rich, minimal, json (default: \"rich\")", func(s string) error {
		if !validRenderMode(s) {
			return fmt.Errorf("invalid render mode %q", s)
		}
		cfg.RenderMode = s
		return nil
	})
	flag.IntVar(&cfg.BufferSize, "buffer-size", defaults.BufferSize, "outbound queue depth, 10..1000")
	flag.BoolVar(&cfg.TLS, "tls", false, "dial the server over TLS")
	flag.BoolVar(&cfg.TLSInsecure, "tls-insecure", false, "skip server certificate verification (requires -tls)")
	flag.StringVar(&cfg.CAFile, "ca-file", "", "PEM file of additional trusted CAs (requires -tls)")
	flag.BoolVar(&cfg.Quiet, "quiet-reconnect", false, "suppress reconnect chatter")
	flag.StringVar(&cfg.HistoryFile, "history-file", "", "path to encrypted history file")
	flag.StringVar(&cfg.HistoryPassphrase, "history-passphrase", "", "passphrase used to derive the history file key")
	flag.DurationVar(&cfg.ReconnectMaxElapsed, "reconnect-max-elapsed", defaults.ReconnectMaxElapsed, "give up after this long retrying, 0 = never")

	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		return ClientConfig{}, &FlagError{Err: err}
	}

	cfg.ServerAddr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	if cfg.Name == "" {
		return ClientConfig{}, newFlagError("-name is required")
	}
	if cfg.HistoryFile != "" && cfg.HistoryPassphrase == "" {
		return ClientConfig{}, newFlagError("-history-file requires -history-passphrase")
	}
	if cfg.BufferSize < 10 || cfg.BufferSize > 1000 {
		return ClientConfig{}, newFlagError("-buffer-size (%d) must be between 10 and 1000", cfg.BufferSize)
	}
	if (cfg.TLSInsecure || cfg.CAFile != "") && !cfg.TLS {
		return ClientConfig{}, newFlagError("-tls-insecure and -ca-file require -tls")
	}

	return cfg, nil
}

func validRenderMode(s string) bool {
	switch s {
	case "rich", "minimal", "json":
		return true
	default:
		return false
	}
}
