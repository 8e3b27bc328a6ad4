package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/SychAndrii/infusion/internal/cli"
)

func main() {
	loadDotEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code, _ := cli.Run(ctx, os.Args, nil)
	stop()
	os.Exit(code)
}

// loadDotEnv loads a .env from the working directory, which may carry
// provider API keys. Its absence is fine; any other problem is worth a
// warning but never stops the run.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: could not load .env:", err)
	}
}
