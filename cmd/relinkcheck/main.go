package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"RuntimeLink/internal/cli"
	"RuntimeLink/internal/logging"
)

func main() {
	slog.SetDefault(logging.New("text", "warn", os.Stderr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cli.Relinkcheck(ctx, os.Args[1:], cli.Streams{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Environ: os.Environ(),
	})
	cancel()
	os.Exit(code)
}
