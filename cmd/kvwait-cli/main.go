package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/yndnr/kvwait/internal/cli/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	app := command.App()
	if err := app.RunContext(ctx, os.Args); err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
