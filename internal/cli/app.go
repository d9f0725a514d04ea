package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/statforge"
	"github.com/aretw0/statforge/internal/config"
	"github.com/aretw0/statforge/internal/logging"
	"github.com/aretw0/statforge/internal/telemetry"
	"github.com/aretw0/statforge/pkg/adapters/file"
	"github.com/aretw0/statforge/pkg/adapters/llm"
	"github.com/aretw0/statforge/pkg/adapters/memory"
	"github.com/aretw0/statforge/pkg/adapters/redis"
	"github.com/aretw0/statforge/pkg/adapters/search"
	"github.com/aretw0/statforge/pkg/domain"
	"github.com/aretw0/statforge/pkg/generation"
	"github.com/aretw0/statforge/pkg/observability"
	"github.com/aretw0/statforge/pkg/persistence/middleware"
	"github.com/aretw0/statforge/pkg/ports"
	"github.com/aretw0/statforge/pkg/schema"
)

// Options controls how Build wires the application.
type Options struct {
	Config config.Config
	Logger *slog.Logger
	// Registerer receives the workflow metrics. Nil disables metrics.
	Registerer prometheus.Registerer
	// Hooks are chained after the logging and metrics hooks.
	Hooks []domain.LifecycleHooks
	// Backend overrides the configured generation backend.
	Backend generation.Backend
}

// App is a fully wired converter plus the resources it owns.
type App struct {
	Converter *statforge.Converter
	Corpus    ports.Corpus
	Index     *search.Index
	Logger    *slog.Logger
	Config    config.Config

	closers []func(context.Context) error
}

// Close releases every resource opened by Build, in reverse order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Build creates the converter described by opts.Config.
func Build(ctx context.Context, opts Options) (_ *App, err error) {
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	app := &App{Logger: logger, Config: cfg}
	defer func() {
		if err != nil {
			_ = app.Close(ctx)
		}
	}()

	be := opts.Backend
	if be == nil {
		be, err = llm.New(ctx, cfg.Backend.Settings())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Backend.Provider, err)
		}
	}

	convOpts := []statforge.Option{
		statforge.WithLogger(logger),
		statforge.WithTopK(cfg.TopK),
	}

	// The redis client is shared by store, locker and corpus.
	var rdb *backend.Client
	redisClient := func() *backend.Client {
		if rdb == nil {
			rdb = backend.NewClient(&backend.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			app.closers = append(app.closers, func(context.Context) error { return rdb.Close() })
		}
		return rdb
	}

	var store ports.StateStore
	switch cfg.Store.Type {
	case "memory":
		store = memory.NewStore()
	case "file":
		store = file.NewStore(cfg.Store.Path)
	case "redis":
		client := redisClient()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		store = redis.NewFromClient(client,
			redis.WithPrefix(cfg.Redis.Prefix),
			redis.WithTTL(time.Duration(cfg.Store.TTLSeconds)*time.Second),
		)
		convOpts = append(convOpts, statforge.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
		if cfg.Store.LockTTLSeconds > 0 {
			convOpts = append(convOpts, statforge.WithLockTTL(time.Duration(cfg.Store.LockTTLSeconds)*time.Second))
		}
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Store.Type)
	}
	if cfg.Store.EncryptionKey != "" {
		mw, err := encryption(cfg.Store)
		if err != nil {
			return nil, err
		}
		store = middleware.Wrap(store, mw)
	}
	convOpts = append(convOpts, statforge.WithStore(store))

	switch cfg.Corpus.Type {
	case "memory":
		app.Corpus = memory.NewCorpus(schema.Default)
	case "csv":
		app.Corpus = file.NewCorpus(cfg.Corpus.Dir, file.WithPrefix(cfg.Corpus.Prefix))
	case "redis":
		app.Corpus = redis.NewCorpus(redisClient(), cfg.Redis.Prefix, schema.Default)
	default:
		return nil, fmt.Errorf("unknown corpus type %q", cfg.Corpus.Type)
	}
	convOpts = append(convOpts, statforge.WithCorpus(app.Corpus))

	if cfg.Retrieval.Enabled {
		idx, err := openIndex(ctx, cfg.Retrieval, app.Corpus, logger)
		if err != nil {
			return nil, err
		}
		app.Index = idx
		app.closers = append(app.closers, func(context.Context) error { return idx.Close() })
		convOpts = append(convOpts, statforge.WithRetriever(idx), statforge.WithIndexer(idx))
	}

	if cfg.Telemetry.Tracing {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.ServiceName)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, tp.Shutdown)
		convOpts = append(convOpts, statforge.WithTracer(tp.Tracer(telemetry.ServiceName)))
	}

	hooks := []domain.LifecycleHooks{observability.LoggingHooks(logger)}
	if opts.Registerer != nil {
		hooks = append(hooks, observability.NewMetrics(opts.Registerer).Hooks())
	}
	hooks = append(hooks, opts.Hooks...)
	convOpts = append(convOpts, statforge.WithLifecycleHooks(observability.Chain(hooks...)))

	gw := generation.NewGateway(be, generation.WithLogger(logger))
	app.Converter = statforge.New(gw, convOpts...)
	return app, nil
}

// encryption builds the checkpoint encryption middleware from base64 keys.
func encryption(cfg config.Store) (middleware.Middleware, error) {
	active, err := middleware.ParseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid store encryption key: %w", err)
	}
	enc := middleware.EncryptionConfig{ActiveKey: active}
	for i, raw := range cfg.FallbackKeys {
		key, err := middleware.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid store fallback key %d: %w", i, err)
		}
		enc.FallbackKeys = append(enc.FallbackKeys, key)
	}
	return middleware.NewEncryptionMiddleware(enc)
}

// openIndex opens the search index and catches it up with the corpus.
func openIndex(ctx context.Context, cfg config.Retrieval, corpus ports.Corpus, logger *slog.Logger) (*search.Index, error) {
	var (
		idx *search.Index
		err error
	)
	if cfg.IndexPath == "" {
		idx, err = search.NewMemIndex(search.WithLogger(logger))
	} else {
		idx, err = search.Open(cfg.IndexPath, search.WithLogger(logger))
	}
	if err != nil {
		return nil, err
	}

	if err := idx.Sync(ctx, corpus, domain.EntityTypes()...); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to index corpus: %w", err)
	}
	return idx, nil
}
