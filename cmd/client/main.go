package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/fieldops/techsync/internal/client/cli"
	"github.com/fieldops/techsync/internal/client/config"
)

func main() {

	cfg := config.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}
	defer app.Close()

	app.Run(ctx)
}
