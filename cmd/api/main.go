package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"trailgate/internal/application"
)

const build = "dev"

// @title trailgate API
// @version 1.0
// @description Fixed-window rate limiting for the tourism app backend.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := application.New()
	if err := app.Start(ctx, build); err != nil {
		fmt.Fprintf(os.Stderr, "start: %v\n", err)
		stop()
		os.Exit(1)
	}

	if err := app.Wait(ctx, stop); err != nil {
		os.Exit(1)
	}
}
