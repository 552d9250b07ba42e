// Package main is the scribe command-line client.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/keyxmakerx/scribe/internal/client/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewApp().Execute(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
