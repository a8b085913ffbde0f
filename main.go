package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/aria/pkg/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := cli.Run(ctx, os.Args); err != nil {
		os.Exit(err.Code)
	}
}
