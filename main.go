// ./main.go
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/jirapull/cmd"
)

// main is the entry point for the jirapull CLI.
func main() {
	// Interrupts cancel the run context so the session teardown still gets
	// to execute.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd.Execute(ctx)
}
