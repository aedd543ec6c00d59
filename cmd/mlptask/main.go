// Package main is the entry point for the mlptask CLI.
//
// Usage:
//
//	mlptask [flags] <command> [args]
//
// Commands:
//
//	fit      - Fit a model from texts and persist it
//	predict  - Look up texts by index in the fitted model
//	prune    - Delete the persisted model
//	status   - Show whether a fitted model is loaded
//	version  - Show version information
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/haivivi/mlptask/cmd/mlptask/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Execute(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
