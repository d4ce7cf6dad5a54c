// Command cmdchat-client connects to a cmdchat server, renders incoming
// traffic, and turns terminal input into chat messages and commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/backkem/cmdchat/pkg/client"
	"github.com/backkem/cmdchat/pkg/config"
	"github.com/backkem/cmdchat/pkg/dispatch"
	"github.com/pion/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "cmdchat-client:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a run() failure to spec §6's exit code contract: 2 for a
// bad CLI flag/env value, 3 for a TLS/config failure, 1 otherwise.
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
	cfg, err := config.ParseClientFlags()
	if err != nil {
		return err
	}

	lf := logging.NewDefaultLoggerFactory()
	log := lf.NewLogger("client")

	c, err := client.New(cfg, log, nil, nil)
	if err != nil {
		return fmt.Errorf("init client: %w", err)
	}
	defer c.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return c.Run(ctx)
}
