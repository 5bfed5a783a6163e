package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"medcourier/cmd/loadctl/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.NewLoadctlCommand(ctx).Execute(); err != nil {
		stop()
		os.Exit(1)
	}
}
