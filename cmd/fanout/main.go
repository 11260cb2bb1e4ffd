package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/parallelworks/gaussian-workflow-demo/internal/observability"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
