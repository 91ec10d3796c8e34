// Package main starts the demo card service and handles termination.
//
// The process is a reference wiring of the SDK's transports so dashboard
// card handlers can be exercised without a host application.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	cardscmd "github.com/adimis-ai/cereon-sdk/internal/cmd/cards"
)

func main() {
	cfg, err := cardscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[CARDS] ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cardscmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
