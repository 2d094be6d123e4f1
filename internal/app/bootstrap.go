package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"courseware.fit/polyglot/internal/config"
	"courseware.fit/polyglot/internal/kvstore"
	"courseware.fit/polyglot/internal/logging"
	"courseware.fit/polyglot/internal/replicate"
	"courseware.fit/polyglot/internal/resource"
	"courseware.fit/polyglot/internal/translation"
)

// loadRuntime loads configuration and builds the service logger.
func loadRuntime() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return nil, zerolog.Logger{}, fmt.Errorf("initialize logger: %w", err)
	}

	return cfg, logger, nil
}

// openStore connects to the configured store. The returned close function is
// safe to call for either backend.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (kvstore.Store, func(), error) {
	if cfg.UseMemoryStore() {
		logger.Warn().Msg("DATABASE_URL is empty; using in-memory store")
		return kvstore.NewMemory(), func() {}, nil
	}

	store, err := kvstore.NewPostgres(ctx, kvstore.PostgresOptions{
		DatabaseURL: cfg.DatabaseURL,
		Namespace:   cfg.StoreNamespace,
		MinConns:    cfg.DBMinConns,
		MaxConns:    cfg.DBMaxConns,
		LogLevel:    cfg.LogLevel,
		Environment: cfg.Environment,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to store: %w", err)
	}

	closeStore := func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("close store failed")
		}
	}
	return store, closeStore, nil
}

// buildCoordinator wires the replication pipeline on top of an open store.
func buildCoordinator(store kvstore.Store, cfg *config.Config, logger zerolog.Logger) (*replicate.Coordinator, *resource.Repository) {
	repo := resource.NewRepository(store, logger)
	registry := translation.NewRegistryFromEnv()
	verifier := replicate.NewVerifier(store, logger, replicate.VerifyPolicy{
		Disabled:     cfg.VerifyDisabled,
		MaxAttempts:  cfg.VerifyMaxAttempts,
		InitialDelay: cfg.VerifyInitialDelay,
		MaxDelay:     cfg.VerifyMaxDelay,
		MaxTotalWait: cfg.VerifyMaxTotalWait,
	})
	orch := replicate.NewOrchestrator(repo, registry, verifier, logger, replicate.OrchestratorOptions{
		RetryPolicy: translation.RetryPolicy{
			MaxAttempts:    cfg.TranslateMaxAttempts,
			InitialBackoff: cfg.TranslateInitialDelay,
		},
	})
	coordinator := replicate.NewCoordinator(orch, repo, logger, cfg.MaxTargetLanguages)
	return coordinator, repo
}
