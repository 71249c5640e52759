// Package app wires configuration into a ready sync job. Both binaries
// build through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/yourorg/tokko-sync/internal/cache"
	"github.com/yourorg/tokko-sync/internal/config"
	"github.com/yourorg/tokko-sync/internal/events"
	"github.com/yourorg/tokko-sync/internal/logger"
	"github.com/yourorg/tokko-sync/internal/media"
	"github.com/yourorg/tokko-sync/internal/redisx"
	"github.com/yourorg/tokko-sync/internal/store"
	"github.com/yourorg/tokko-sync/internal/syncer"
	"github.com/yourorg/tokko-sync/internal/taxonomy"
	"github.com/yourorg/tokko-sync/tokko"
)

type App struct {
	Config *config.AppConfig
	Logger *slog.Logger
	Job    *syncer.Job
	Source *tokko.Client
	Errors *cache.ErrorLog

	closers []func() error
	stop    context.CancelFunc
}

// New connects every backend named by cfg. The caller owns Close.
func New(ctx context.Context, cfg *config.AppConfig, service string) (*App, error) {
	lg, closeLog, err := logger.New(logger.Config{
		Level:         cfg.Log.Level,
		JSON:          cfg.Log.Format == "json",
		FluentEnabled: cfg.FluentBit.Enabled,
		FluentHost:    cfg.FluentBit.Host,
		FluentPort:    cfg.FluentBit.Port,
		FluentTag:     service,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	lg = lg.With("service", service)
	a := &App{Config: cfg, Logger: lg, closers: []func() error{closeLog}}

	st, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	kv, locker, err := a.openCache(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Errors = cache.NewErrorLog(kv)

	a.Source = tokko.NewClient(tokko.Config{
		APIKey:    cfg.Tokko.APIKey,
		BaseURL:   cfg.Tokko.BaseURL,
		Lang:      cfg.Tokko.Lang,
		PageSize:  cfg.Tokko.PageSize,
		PagePause: cfg.Tokko.PagePause,
		CacheTTL:  cfg.Tokko.CacheTTL,
		RetryMax:  2,
	}, kv, a.Errors, lg.With("component", "tokko"))

	terms := taxonomy.NewResolver(st, cfg.Mapping.TermTable(), lg.With("component", "taxonomy"))
	dl := media.NewHTTPDownloader(cfg.Sync.MediaRatePerSec, lg.With("component", "media"))

	a.Job = &syncer.Job{
		Fetcher:  a.Source,
		Mapper:   cfg.Mapping.Mapper(),
		Upserter: syncer.NewUpserter(st, terms, lg.With("component", "upsert")),
		Media:    media.NewResolver(st, dl, cfg.Sync.MaxPhotos, lg.With("component", "media")),
		Store:    st,
		Locker:   locker,
		Cache:    kv,
		Errors:   a.Errors,
		Events:   a.openEvents(),
		Logger:   lg.With("component", "sync"),
		Config: syncer.Config{
			PostTypeCandidates: cfg.Sync.PostTypeCandidates,
			DefaultPostType:    cfg.Sync.DefaultPostType,
			UseCache:           cfg.Sync.UseCache,
			BatchSize:          cfg.Sync.BatchSize,
			BatchPause:         cfg.Sync.BatchPause,
			LockTTL:            cfg.Sync.LockTTL,
		},
	}
	return a, nil
}

func (a *App) openStore(ctx context.Context) (store.Store, error) {
	cfg := a.Config
	if cfg.Store.Backend == "memory" {
		a.Logger.Warn("app: using in-memory store, records are lost on exit")
		return store.NewMemory(cfg.Sync.DefaultPostType), nil
	}
	pg, err := store.Open(cfg.Store.PGDSN)
	if err != nil {
		return nil, fmt.Errorf("store open: %w", err)
	}
	a.closers = append(a.closers, pg.Close)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return pg, nil
}

func (a *App) openCache(ctx context.Context) (cache.Cache, cache.Locker, error) {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		mem := cache.NewMemory()
		return mem, mem, nil
	}
	rc := redisx.New(cfg.Addr, cfg.Password, cfg.DB)
	a.closers = append(a.closers, rc.Close)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rc, rc, nil
}

// openEvents always logs events; RabbitMQ is added when configured and
// reachable.
func (a *App) openEvents() events.Publisher {
	mem := events.NewInMemory(256)
	sinkCtx, stop := context.WithCancel(context.Background())
	a.stop = stop
	sink := &events.LogSink{Pub: mem, Log: a.Logger.With("component", "events")}
	go sink.Run(sinkCtx)

	out := events.Fanout{mem}
	rmq := a.Config.RabbitMQ
	if rmq.URL == "" {
		return out
	}
	pub, err := events.NewAMQPPublisher(rmq.URL, rmq.Exchange, a.Logger.With("component", "amqp"))
	if err != nil {
		a.Logger.Error("app: rabbitmq unavailable, events stay local", "err", err)
		return out
	}
	a.closers = append(a.closers, pub.Close)
	return append(out, pub)
}

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
