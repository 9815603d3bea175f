package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/cartographer/cmd"
	"github.com/xkilldash9x/cartographer/internal/observability"
)

func main() {
	// Interrupts cancel the context; the session honors it between
	// iterations so the persisted document stays consistent.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		os.Exit(1)
	}
}
