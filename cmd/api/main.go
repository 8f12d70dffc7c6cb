package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/user/site-auditor/internal/app"
	"github.com/user/site-auditor/internal/delivery/http/handler"
	"github.com/user/site-auditor/internal/delivery/http/router"
	"github.com/user/site-auditor/internal/usecase"
	"github.com/user/site-auditor/pkg/config"
	"github.com/user/site-auditor/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// --- Configuration ---
	flags := pflag.NewFlagSet("api", pflag.ExitOnError)
	configPath := flags.String("config", "", "path to a YAML, JSON or TOML config file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Int("workers", 0, "status validator workers per site")
	flags.String("renderer", "", "page renderer: http or browser")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*configPath, flags)
	if err != nil {
		return err
	}

	// --- Logger ---
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	log.Info("Logger initialized", zap.String("level", cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Dependencies ---
	application, err := app.Build(ctx, cfg, prometheus.DefaultRegisterer, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := application.Close(); err != nil {
			log.Warn("failed to close dependencies", zap.Error(err))
		}
	}()

	// --- Use Cases ---
	manager := usecase.NewAuditManager(application.Auditor, application.Runs, application.Queue, application.Recent,
		usecase.ManagerOptions{
			Workers:     cfg.Audit.SiteConcurrency,
			DedupWindow: cfg.Audit.DedupWindow,
		}, log)

	workersDone := make(chan error, 1)
	go func() { workersDone <- manager.Run(ctx) }()

	// --- HTTP Server ---
	checks := make(map[string]handler.HealthCheck, len(application.Checks))
	for name, check := range application.Checks {
		checks[name] = check
	}
	apiHandler := handler.NewHandler(manager, application.Events, checks, log)
	httpRouter := router.New(apiHandler, application.Metrics, prometheus.DefaultGatherer, log)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpRouter,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		stop()
		<-workersDone
		return fmt.Errorf("listen on port %s: %w", cfg.Server.Port, err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("server shutdown failed", zap.Error(err))
	}
	return <-workersDone
}
