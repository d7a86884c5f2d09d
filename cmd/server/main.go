// Package main implements the presswork background daemon: the job queue
// dispatcher, the schedule driver, and the health aggregator that together
// keep content generation running.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("application exited with error: %v", err)
	}
}
