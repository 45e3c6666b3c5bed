// Package main is the entry point for the snippet-box HTTP server.
//
// main stays minimal:
//  1. load .env and configuration
//  2. build the logger and the engine (internal/app)
//  3. start the server (internal/server)
//
// Configuration file path comes from SNIPBOX_CONFIG, everything else from the
// file or SNIPBOX_* variables. See internal/config.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/sakif/snippet-box/internal/app"
	"github.com/sakif/snippet-box/internal/config"
	"github.com/sakif/snippet-box/internal/server"
)

func main() {
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := config.LoadDotEnv(); err != nil {
		bootLogger.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.Load(os.Getenv("SNIPBOX_CONFIG"))
	if err != nil {
		bootLogger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := cfg.Log.NewLogger(os.Stdout)

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to open snippet store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer a.Close()

	srv, err := server.New(a, logger)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT or SIGTERM.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		a.Close()
		os.Exit(1)
	}
}
