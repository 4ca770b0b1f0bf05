package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mikey/decoy-alerts/internal/config"
	"github.com/mikey/decoy-alerts/internal/di"
	"github.com/mikey/decoy-alerts/internal/ports"
	"go.uber.org/zap"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	cfg *config.Config,
	logger *zap.Logger,
	server ports.InboundServer,
	dispatcher ports.AlertDispatcher,
	store ports.Store,
) error {
	defer logger.Sync()

	serverConfig, err := cfg.GetServer()
	if err != nil {
		return err
	}

	// Start the webhook server
	if err := server.Start(); err != nil {
		logger.Error("Failed to start webhook server", zap.Error(err))
		return err
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop accepting hits first so no new alerts are queued
	if err := server.Stop(); err != nil {
		logger.Error("Failed to stop webhook server", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), serverConfig.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Stop(ctx); err != nil {
		logger.Error("Failed to drain alert dispatcher", zap.Error(err))
	}

	if err := store.Close(); err != nil {
		logger.Error("Failed to close store", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}
