// Command ampctl signs in to an amp server and keeps the session on disk.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hitoshi/amp/internal/cli"
	"github.com/hitoshi/amp/internal/logger"
)

func main() {
	logger.SetupDefaultWithLevel(os.Stderr, slog.LevelWarn)

	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
