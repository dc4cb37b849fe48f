package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/vimlm/internal/config"
	"github.com/ChamsBouzaiene/vimlm/internal/indexer"
	"github.com/ChamsBouzaiene/vimlm/internal/logging"
	"github.com/ChamsBouzaiene/vimlm/internal/model"
	"github.com/ChamsBouzaiene/vimlm/internal/providers"
)

// runtimeEnv is everything a subcommand needs, built from cfg.json and the
// environment.
type runtimeEnv struct {
	manager  *config.Manager
	cfg      *config.Config
	logger   *zap.Logger
	model    *model.Session
	ingestor *indexer.Ingestor

	closeCache func() error
}

func (r *runtimeEnv) Close() {
	if r.closeCache != nil {
		if err := r.closeCache(); err != nil {
			r.logger.Warn("failed to close cache", zap.Error(err))
		}
	}
	_ = r.logger.Sync()
}

// loadConfig resolves the home directory and reads cfg.json with .env and
// environment overrides applied.
func loadConfig() (*config.Manager, *config.Config, error) {
	manager, err := config.NewManager(homeFlag)
	if err != nil {
		return nil, nil, err
	}
	if err := manager.LoadEnv(); err != nil {
		return nil, nil, err
	}
	cfg, err := manager.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return nil, nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	return manager, cfg, nil
}

func prepareRuntimeEnv(ctx context.Context, console bool) (*runtimeEnv, error) {
	manager, cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Options{
		FilePath: manager.LogPath(),
		Debug:    cfg.Debug,
		Console:  console,
	})

	llm, err := providers.NewLLMClient(providers.Settings{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	logger.Info("model configured",
		zap.String("provider", cfg.Provider), zap.String("model", cfg.Model), logging.Key(logging.KeyDebug))

	store, closeCache, err := indexer.OpenCacheStore(ctx, cfg.CacheBackend, manager.Home(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	newSession := func() *model.Session {
		return model.New(llm, model.Config{Model: cfg.Model, Logger: logger})
	}

	// Summaries run in their own conversation so that ingesting does not
	// wipe a followup thread.
	ingestor := indexer.NewIngestor(newSession(), store, indexer.IngestorConfig{
		ChunkTokens: cfg.ChunkTokens,
		Lister: indexer.ListerConfig{
			Ignore:       cfg.Ignore,
			MaxFileBytes: cfg.MaxFileBytes,
		},
		Logger: logger,
	})

	return &runtimeEnv{
		manager:    manager,
		cfg:        cfg,
		logger:     logger,
		model:      newSession(),
		ingestor:   ingestor,
		closeCache: closeCache,
	}, nil
}

func workDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
