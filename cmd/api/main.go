package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vicmordi/AIHelpdesk/internal/bootstrap"
	"github.com/vicmordi/AIHelpdesk/internal/config"
	"github.com/vicmordi/AIHelpdesk/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	container, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer container.Close()

	if cfg.Analysis.SchedulerEnabled {
		if err := container.Scheduler.Start(ctx); err != nil {
			logger.Fatal("failed to start analysis scheduler", zap.Error(err))
		}
	}

	app := container.HTTPApp()
	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("version", cfg.App.Version))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
