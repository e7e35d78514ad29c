package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/manifest-network/manifest-mcp-browser-sub000/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := app.NewRunner().RunContext(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
