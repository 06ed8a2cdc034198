package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/api"
	"github.com/statusops/statushook/internal/auth"
	"github.com/statusops/statushook/internal/dispatch"
	"github.com/statusops/statushook/internal/execlog"
	"github.com/statusops/statushook/internal/lock"
	"github.com/statusops/statushook/internal/log"
	"github.com/statusops/statushook/internal/storage"
	"github.com/statusops/statushook/internal/webhook"
)

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel)
	logger := log.WithComponent("main")
	logger.Info("statushook starting", "version", version, "config", resolvedPath)

	pidLock, err := lock.Acquire(cfg.Service.PidFile)
	if err != nil {
		logger.Error("failed to acquire PID lock", "path", cfg.Service.PidFile, "error", err)
		return 1
	}
	defer pidLock.Release()
	logger.Info("acquired PID lock", "path", pidLock.Path())

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, cfg.Storage.Path)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Storage.Path, "error", err)
		return 1
	}
	defer db.Close()
	logger.Info("database opened", "path", cfg.Storage.Path)

	actions := action.NewStore(db)
	logs := execlog.NewStore(db)
	dispatcher := dispatch.New(actions, logs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	listener := webhook.New(webhook.Config{
		Listen:          cfg.Webhook.Listen,
		Path:            cfg.Webhook.Path,
		Secret:          cfg.Webhook.Secret,
		SignatureHeader: cfg.Webhook.SignatureHeader,
		MaxBodySize:     cfg.Webhook.MaxBodySize,
	}, dispatcher, log.WithComponent("webhook"))
	go func() {
		if err := listener.Start(ctx); err != nil && err != context.Canceled {
			errCh <- fmt.Errorf("webhook: %w", err)
		}
	}()
	if cfg.Webhook.Secret == "" {
		logger.Warn("webhook listener accepts unsigned notifications", "listen", cfg.Webhook.Listen)
	}

	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{
				Token:  t.Token,
				Scopes: t.Scopes,
			})
		}
		apiServer := api.New(api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: tokens,
		}, actions, logs, dispatcher, log.WithComponent("api"))
		go func() {
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				errCh <- fmt.Errorf("api: %w", err)
			}
		}()
		logger.Info("API server enabled", "listen", cfg.API.Listen)
	}

	logger.Info("statushook running (press Ctrl+C to stop)")

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	case err := <-errCh:
		logger.Error("component failed", "error", err)
		cancel()
		return 1
	}

	logger.Info("statushook stopped")
	return 0
}
