// Command cmdchat-server runs the cmdchat relay: it binds a TCP
// listener and services client sessions until interrupted.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/backkem/cmdchat/pkg/chatsvc"
	"github.com/backkem/cmdchat/pkg/config"
	"github.com/backkem/cmdchat/pkg/dispatch"
	"github.com/pion/logging"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cmdchat-server:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run() failure to spec §6's exit code contract: 2 for a
// bad CLI flag/env value, 3 for a startup/TLS config failure, 1 otherwise.
func exitCode(err error) int {
	var flagErr *config.FlagError
	if errors.As(err, &flagErr) {
		return 2
	}
	var chatErr *dispatch.ChatError
	if errors.As(err, &chatErr) && chatErr.Kind == dispatch.KindConfig {
		return 3
	}
	return 1
}

func run() error {
	cfg, err := config.ParseServerFlags()
	if err != nil {
		return err
	}
	if lvl := os.Getenv("CMDCHAT_LOG_LEVEL"); lvl != "" {
		cfg.LogLevel = lvl
	}

	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = parseLogLevel(cfg.LogLevel)

	tokens := parseTokens(os.Getenv("CMDCHAT_TOKENS"))

	if env := os.Getenv("CMDCHAT_METRICS"); env == "0" {
		cfg.MetricsInterval = 0
	}

	metrics, shutdownMetrics, err := newMetrics(cfg.MetricsInterval)
	if err != nil {
		return dispatch.NewError(dispatch.KindConfig, err)
	}
	defer shutdownMetrics(context.Background())

	srv := chatsvc.New(cfg, tokens, lf, metrics)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	return srv.Stop()
}

// newMetrics builds the server's OpenTelemetry instruments against a
// periodic stdout exporter sampled every interval (spec §4.15). interval
// of 0 (the CLI's disable value) skips instrumentation entirely and
// returns a nil *chatsvc.Metrics, which every Metrics method treats as a
// safe no-op.
func newMetrics(interval time.Duration) (*chatsvc.Metrics, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if interval <= 0 {
		return nil, noop, nil
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, noop, fmt.Errorf("build metrics exporter: %w", err)
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	metrics, err := chatsvc.NewMetrics(provider.Meter("cmdchat"))
	if err != nil {
		return nil, noop, fmt.Errorf("build metrics instruments: %w", err)
	}

	return metrics, provider.Shutdown, nil
}

func parseTokens(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	tokens := make(map[string]struct{})
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens[t] = struct{}{}
		}
	}
	return tokens
}

func parseLogLevel(s string) logging.LogLevel {
	switch s {
	case "debug":
		return logging.LogLevelDebug
	case "warn":
		return logging.LogLevelWarn
	case "error":
		return logging.LogLevelError
	default:
		return logging.LogLevelInfo
	}
}
