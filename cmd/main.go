package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"raindrop_sync/internal/apperr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCMD().ExecuteContext(ctx)
	stop()
	os.Exit(apperr.ExitCode(err))
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
