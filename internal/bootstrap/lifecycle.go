package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carcrawl/carcrawl/internal/api"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/scheduler"
	"github.com/carcrawl/carcrawl/internal/sources"
)

const (
	signalChannelBufferSize = 1
	defaultShutdownTimeout  = 30 * time.Second
)

// RunUntilInterrupt blocks until the process is signalled or a component
// reports a fatal error, then shuts down in order: the daemon stops
// scheduling and drains in-flight runs, the API server stops accepting
// requests, the source watcher closes. Server and watcher may be nil.
func RunUntilInterrupt(
	log logger.Interface,
	server *api.Server,
	daemon *scheduler.Daemon,
	watcher *sources.Watcher,
	errChan <-chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		log.Error("Component failed", "error", err)
		shutdown(log, server, daemon, watcher)
		return fmt.Errorf("component failed: %w", err)
	case sig := <-sigChan:
		log.Info("Shutdown signal received", "signal", sig.String())
		shutdown(log, server, daemon, watcher)
		return nil
	}
}

func shutdown(log logger.Interface, server *api.Server, daemon *scheduler.Daemon, watcher *sources.Watcher) {
	daemon.Stop()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			log.Error("Failed to stop API server", "error", err)
		}
	}

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			log.Error("Failed to close source watcher", "error", err)
		}
	}

	log.Info("Shutdown complete")
}
