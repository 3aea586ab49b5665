package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/address-lookup/internal/config"
	"github.com/jonathan/address-lookup/internal/db"
	"github.com/jonathan/address-lookup/internal/llm"
	"github.com/jonathan/address-lookup/internal/normalize"
	"github.com/jonathan/address-lookup/internal/pipeline"
	"github.com/jonathan/address-lookup/internal/search"
	"github.com/jonathan/address-lookup/internal/session"
)

// loadConfig reads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger returns a production logger in production and a development logger otherwise.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// sessionPurgeInterval is how often expired postgres sessions are deleted.
const sessionPurgeInterval = time.Hour

// openStore creates the configured session store. The returned close function is never nil.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		store, err := session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.MaxAge, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.StorePostgres:
		database, err := db.Connect(ctx, cfg.Session.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		store := session.NewPostgresStore(database, cfg.Session.MaxAge)

		purgeCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			store.RunPurge(purgeCtx, sessionPurgeInterval, logger)
		}()

		return store, func() {
			cancel()
			<-done
			database.Close()
		}, nil

	default:
		store, err := session.NewMemoryStore(cfg.Session.MemoryCapacity)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// buildPipeline wires the resolver and, when enabled, the normalizer around store.
// The returned close function is never nil.
func buildPipeline(ctx context.Context, cfg *config.Config, store session.Store, logger *zap.Logger, onProgress pipeline.ProgressCallback) (*pipeline.Pipeline, func(), error) {
	resolver, err := search.New(ctx, cfg.Search, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	if cfg.Search.APIKey == "" && cfg.Search.Provider == config.ProviderTavily {
		logger.Warn("TAVILY_API_KEY is not set; every lookup will report a missing credential")
	}

	opts := pipeline.Options{
		Resolver:    resolver,
		Store:       store,
		Concurrency: cfg.Lookup.Concurrency,
		Logger:      logger,
		OnProgress:  onProgress,
	}
	closeFn := func() {}

	if cfg.NormalizerEnabled() {
		tier, err := llm.ParseTier(cfg.LLM.Tier)
		if err != nil {
			return nil, nil, err
		}
		client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.LLM.APIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
		}
		opts.Normalizer = normalize.New(client, tier, logger)
		closeFn = func() { _ = client.Close() }
	} else {
		logger.Info("address normalization disabled")
	}

	return pipeline.New(opts), closeFn, nil
}
