// campaign-filter - builds ranked outbound call campaigns from client margin bases.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/konsi/campaign-filter/internal/api"
	"github.com/konsi/campaign-filter/internal/bus"
	"github.com/konsi/campaign-filter/internal/cache"
	"github.com/konsi/campaign-filter/internal/domain"
	"github.com/konsi/campaign-filter/internal/pipeline"
	"github.com/konsi/campaign-filter/internal/repository"
	"github.com/konsi/campaign-filter/internal/rules"
	"github.com/konsi/campaign-filter/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	logLevel := slog.LevelInfo
	if os.Getenv("FILTER_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("starting campaign-filter",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg, err := loadConfig(os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("campaign-filter stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("campaign-filter shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config) error {
	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	if cfg.Repository.RulesFile != "" {
		src, err := repository.OpenRuleFile(cfg.Repository.RulesFile)
		if err != nil {
			return fmt.Errorf("failed to load rules file: %w", err)
		}
		n, err := repository.ImportRules(ctx, repo, src)
		if err != nil {
			return fmt.Errorf("failed to import rules file: %w", err)
		}
		slog.Info("exclusion rules imported", "file", cfg.Repository.RulesFile, "count", n)
	}

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	engine, err := rules.NewDefaultEngine()
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	defer engine.Close()
	slog.Info("rule engine initialized", "rules_count", engine.RulesCount())

	recorder := worker.NewWorker(busImpl, repo)
	if err := recorder.Start(); err != nil {
		return fmt.Errorf("failed to start run worker: %w", err)
	}
	defer recorder.Stop()

	ruleSource := cache.NewRuleSource(repo, cacheImpl, cfg.Cache.RulesTTL)
	handler := api.NewHandler(repo, ruleSource, cacheImpl, busImpl, pipeline.NewProcessor(engine), Version).
		WithMaxUpload(cfg.Server.MaxUploadBytes)
	srv := api.NewServer(cfg.Server, handler)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("campaign-filter is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	return nil
}
