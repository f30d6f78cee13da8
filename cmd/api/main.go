package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lawdesk/lawdesk/internal/config"
	"github.com/lawdesk/lawdesk/internal/connectivity"
	"github.com/lawdesk/lawdesk/internal/infra"
	"github.com/lawdesk/lawdesk/internal/logging"
	"github.com/lawdesk/lawdesk/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		if !cfg.IsDev() {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		logger.Warn("running without postgres, using in-memory stores", "error", err)
		db = nil
	}
	if db != nil {
		defer db.Close()
		ready, err := infra.SchemaReady(ctx, db)
		if err != nil {
			logger.Warn("schema check failed", "error", err)
		} else if !ready {
			logger.Warn("profiles schema not initialized, logins will request setup")
		}
	}

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	}

	var monitor connectivity.Monitor = connectivity.Static(true)
	if cfg.ProbeAddr != "" {
		probe := connectivity.NewProbeMonitor(cfg.ProbeAddr, cfg.ProbeInterval)
		defer probe.Close()
		go func() {
			for online := range probe.Subscribe() {
				logger.Info("connectivity changed", "online", online)
			}
		}()
		monitor = probe
	}

	srv, err := server.New(cfg, db, cache, monitor, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
