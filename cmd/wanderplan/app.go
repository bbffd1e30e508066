package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/pario-ai/wanderplan/pkg/audit"
	"github.com/pario-ai/wanderplan/pkg/budget"
	"github.com/pario-ai/wanderplan/pkg/cache"
	redisstore "github.com/pario-ai/wanderplan/pkg/cache/redis"
	sqlitestore "github.com/pario-ai/wanderplan/pkg/cache/sqlite"
	"github.com/pario-ai/wanderplan/pkg/completion"
	"github.com/pario-ai/wanderplan/pkg/config"
	"github.com/pario-ai/wanderplan/pkg/images"
	"github.com/pario-ai/wanderplan/pkg/logging"
	"github.com/pario-ai/wanderplan/pkg/planner"
	"github.com/pario-ai/wanderplan/pkg/router"
	"github.com/pario-ai/wanderplan/pkg/tracker"
	"github.com/pario-ai/wanderplan/pkg/translate"
	"github.com/pario-ai/wanderplan/pkg/weather"
)

// app holds the components built from one configuration.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	tracker  *tracker.SQLiteTracker
	enforcer *budget.Enforcer
	auditor  *audit.Logger
	client   *completion.Client
	cache    *cache.ResultCache
	pipeline *planner.Pipeline

	closers []io.Closer
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newApp validates cfg and wires the full planning pipeline.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logging.New(cfg.Log, os.Stderr),
	}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg

	tr, err := tracker.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("init tracker: %w", err)
	}
	a.tracker = tr
	a.closers = append(a.closers, tr)

	if cfg.Budget.Enabled {
		a.enforcer = budget.New(cfg.Budget.Policies, tr)
	}

	if cfg.Audit.Enabled {
		l, err := audit.New(cfg.Audit)
		if err != nil {
			return fmt.Errorf("init audit: %w", err)
		}
		a.auditor = l
		a.closers = append(a.closers, l)
	}

	providers, err := completion.Providers(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init providers: %w", err)
	}
	clientOpts := []completion.Option{
		completion.WithTracker(tr),
		completion.WithLogger(a.logger),
	}
	if a.enforcer != nil {
		clientOpts = append(clientOpts, completion.WithBudget(a.enforcer))
	}
	if a.auditor != nil {
		clientOpts = append(clientOpts, completion.WithAudit(a.auditor))
	}
	a.client = completion.NewClient(cfg.Completion, router.New(cfg), providers, clientOpts...)

	if cfg.Cache.Enabled {
		c, err := a.openCache(ctx)
		if err != nil {
			return err
		}
		a.cache = c
	}

	opts := []planner.Option{
		planner.WithModel(cfg.Completion.Model),
		planner.WithLogger(a.logger),
		planner.WithTranslator(a.translator()),
	}
	if a.cache != nil {
		opts = append(opts, planner.WithCache(a.cache))
	}
	if cfg.Weather.Enabled {
		wopts := []weather.Option{weather.WithLogger(a.logger)}
		if a.auditor != nil {
			wopts = append(wopts, weather.WithAudit(a.auditor))
		}
		opts = append(opts, planner.WithWeather(weather.New(cfg.Weather, cfg.LookupKey(cfg.Weather), wopts...)))
	}
	if cfg.Images.Enabled {
		iopts := []images.Option{images.WithLogger(a.logger)}
		if a.auditor != nil {
			iopts = append(iopts, images.WithAudit(a.auditor))
		}
		opts = append(opts, planner.WithImages(images.New(cfg.Images, cfg.LookupKey(cfg.Images), iopts...)))
	}
	a.pipeline = planner.New(a.client, opts...)
	return nil
}

func (a *app) translator() *translate.Translator {
	opts := []translate.Option{translate.WithLogger(a.logger)}
	if a.auditor != nil {
		opts = append(opts, translate.WithAudit(a.auditor))
	}
	return translate.New(a.cfg.Translation, opts...)
}

// openCache builds the memory tier and, for the sqlite and redis backends,
// the persistent tier behind it.
func (a *app) openCache(ctx context.Context) (*cache.ResultCache, error) {
	cc := a.cfg.Cache
	opts := []cache.Option{cache.WithLogger(a.logger)}
	store, closer, err := openStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		opts = append(opts, cache.WithStore(store))
		a.closers = append(a.closers, closer)
	}
	return cache.New(cc.TTL, cc.MaxEntries, opts...), nil
}

// openStore returns the persistent cache tier, or nil for the memory backend.
func openStore(ctx context.Context, cfg *config.Config) (cache.Store, io.Closer, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		s, err := sqlitestore.New(cfg.DBPath, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite cache: %w", err)
		}
		return s, s, nil
	case "redis":
		s, err := redisstore.New(ctx, cfg.Cache.Redis, cfg.Cache.TTL)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis cache: %w", err)
		}
		return s, s, nil
	default:
		return nil, nil, nil
	}
}

// Close releases every opened resource in reverse order.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
