package app

import (
	"context"
	"fmt"
	"io"

	"skill_persistence/internal/core"
	"skill_persistence/internal/handlers"
	"skill_persistence/internal/interceptors"
	"skill_persistence/internal/metrics"
	"skill_persistence/internal/storage"
	"skill_persistence/src"

	"github.com/rs/zerolog"
)

// App is the fully wired persistence demo skill
type App struct {
	Config  *src.Config
	Store   storage.AttributeStore
	KeyFn   storage.PartitionKeyFn
	Metrics *metrics.Metrics
	Skill   *core.Skill

	raw    storage.AttributeStore
	logger zerolog.Logger
}

// New opens the configured attribute store and builds the skill on top of it
func New(ctx context.Context, cfg *src.Config, logger zerolog.Logger) (*App, error) {
	store, err := storage.New(ctx, cfg.PersistenceConfig)
	if err != nil {
		return nil, &core.ConfigurationError{Component: "persistence", Reason: "attribute store could not be opened", Err: err}
	}
	a, err := NewWithStore(ctx, cfg, store, logger)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	return a, nil
}

// NewWithStore builds the skill over an already opened store
func NewWithStore(ctx context.Context, cfg *src.Config, store storage.AttributeStore, logger zerolog.Logger) (*App, error) {
	keyFn, err := storage.KeyGenerator(cfg.PersistenceConfig.PartitionKey)
	if err != nil {
		return nil, &core.ConfigurationError{Component: "persistence", Reason: "partition key", Err: err}
	}

	m := metrics.New()
	instrumented := m.InstrumentStore(store)

	skill, err := core.NewStandardSkillBuilder(instrumented, keyFn).
		WithLogger(logger).
		WithObserver(m).
		AddRequestInterceptors(
			interceptors.NewRequestLogger(logger),
			interceptors.NewLoadAttributes(logger),
		).
		AddResponseInterceptors(
			interceptors.NewResponseLogger(logger),
			interceptors.NewSaveAttributes(logger),
		).
		AddRequestHandlers(handlers.Default(cfg.PromptConfig, logger)...).
		AddExceptionHandlers(handlers.NewAllExceptionHandler(cfg.PromptConfig.Fallback, logger)).
		Build(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("backend", cfg.PersistenceConfig.Backend).
		Str("partition_key", cfg.PersistenceConfig.PartitionKey).
		Msg("Skill initialized")

	return &App{
		Config:  cfg,
		Store:   instrumented,
		KeyFn:   keyFn,
		Metrics: m,
		Skill:   skill,
		raw:     store,
		logger:  logger,
	}, nil
}

// Close releases the store's connections, if it holds any
func (a *App) Close() error {
	if err := closeStore(a.raw); err != nil {
		return fmt.Errorf("failed to close attribute store: %w", err)
	}
	return nil
}

func closeStore(store storage.AttributeStore) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
