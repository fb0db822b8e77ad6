package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/KshitijGomber/arrow3-sub001/internal/app"
	"github.com/KshitijGomber/arrow3-sub001/internal/cli"
	"github.com/KshitijGomber/arrow3-sub001/internal/config"
	"github.com/KshitijGomber/arrow3-sub001/pkg/logger"
)

func main() {
	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger. It writes to stderr so command output
	// on stdout stays clean.
	log := logger.New("arrow3", cfg.LogLevel)

	// Create the application with all dependencies wired.
	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Error("shutdown error", slog.String("error", err.Error()))
		}
	}()

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	command := cli.New(application, os.Stdout, os.Stdin)
	if err := command.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "arrow3: %v\n", err)
		os.Exit(1)
	}
}
