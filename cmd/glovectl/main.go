package main

import (
	"context"
	"os"
	"time"

	"github.com/dataglove/glovectl/internal/cli/command"
	"github.com/dataglove/glovectl/internal/infra/shutdown"
)

func main() {
	handler := shutdown.NewHandler(5 * time.Second)
	ctx, cancel := handler.NotifyContext(context.Background())

	err := command.App().RunContext(ctx, os.Args)
	cancel()
	if err != nil {
		command.PrintError(os.Stderr, err)
		os.Exit(1)
	}
}
