package main

import (
	"context"
	"fmt"

	"github.com/spherical/pdf-viewer/cmd/pdf-viewer-api/handlers"
	"github.com/spherical/pdf-viewer/internal/cache"
	"github.com/spherical/pdf-viewer/internal/chat"
	"github.com/spherical/pdf-viewer/internal/config"
	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/pdf"
	"github.com/spherical/pdf-viewer/internal/store"
	"github.com/spherical/pdf-viewer/internal/viewer"
	"github.com/spherical/pdf-viewer/internal/viewport"
)

// App holds the services behind the HTTP API.
type App struct {
	Config   *config.Config
	Store    *store.Directory
	Lister   domain.DocumentLister
	Recorder handlers.Recorder // nil without a catalog
	Notifier store.Notifier
	Chat     chat.Responder
	Registry *viewer.Registry

	closers []func() error
}

// NewApp wires storage, rendering and viewers from cfg.
func NewApp(ctx context.Context, cfg *config.Config, logger *observability.Logger) (*App, error) {
	app := &App{Config: cfg, Notifier: store.NopNotifier{}}

	dir, err := store.NewDirectory(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	app.Store = dir
	app.Lister = dir

	if cfg.Catalog.Driver != "" && cfg.Catalog.Driver != "none" {
		catalog, err := store.OpenCatalog(ctx, cfg.Catalog.Driver, cfg.CatalogDSN(), catalogPool(cfg))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, catalog.Close)
		if added, err := catalog.Sync(ctx, dir); err != nil {
			logger.Warn().Err(err).Msg("Failed to sync catalog with upload folder")
		} else if added > 0 {
			logger.Info().Int("added", added).Msg("Catalog synced with upload folder")
		}
		app.Recorder = catalog
		app.Lister = catalog
	}

	var source domain.DocumentSource = dir
	if cfg.Storage.RemoteBaseURL != "" {
		source = store.NewHTTPSource(cfg.Storage.RemoteBaseURL, cfg.Render.Timeout)
	}

	var redisClient *cache.RedisClient
	if cfg.UsesRedis() {
		redisClient, err = cache.NewRedisClient(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			PoolSize: cfg.Cache.Redis.PoolSize,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		app.closers = append(app.closers, redisClient.Close)
	}

	if cfg.Events.Enabled && redisClient != nil {
		app.Notifier = store.NewPubSubNotifier(redisClient, cfg.Events.Channel, logger)
	}

	var engine domain.Engine = pdf.NewEngine(source, pdf.WithScale(cfg.Render.Scale), pdf.WithLogger(logger))
	switch cfg.Cache.Driver {
	case "redis":
		engine = pdf.NewCachingEngine(engine, redisClient, cfg.Cache.TTL, cfg.Render.Scale, logger)
	case "memory":
		mem := cache.NewMemoryClient(cfg.Cache.MaxEntries)
		app.closers = append(app.closers, mem.Close)
		engine = pdf.NewCachingEngine(engine, mem, cfg.Cache.TTL, cfg.Render.Scale, logger)
	}

	app.Chat = chat.NewClient(cfg.Chat.Endpoint, cfg.Chat.APIKey, cfg.Chat.Timeout,
		chat.WithLogger(logger),
		chat.WithRetry(chat.RetryConfig{
			MaxRetries:     cfg.Chat.MaxRetries,
			InitialBackoff: chat.DefaultRetryConfig().InitialBackoff,
			MaxBackoff:     chat.DefaultRetryConfig().MaxBackoff,
		}),
	)

	app.Registry = viewer.NewRegistry(func(id string) *viewer.Manager {
		vlog := logger.WithViewer(id)
		return viewer.NewManager(engine, newObserver(cfg.Viewport.Mode), viewer.Options{
			PlaceholderHeight: cfg.Viewport.PlaceholderHeight,
			Observation: domain.ObservationOptions{
				Margin:    cfg.Viewport.Margin,
				Threshold: cfg.Viewport.Threshold,
			},
			Strict:        cfg.Viewer.StrictTransitions,
			MaxConcurrent: cfg.Render.MaxConcurrent,
			RenderTimeout: cfg.Render.Timeout,
			Logger:        vlog,
			OnEvent: func(e domain.SessionEvent) {
				vlog.Debug().
					Str("event", string(e.Type)).
					Uint64("generation", e.Generation).
					Int("page", e.PageNumber).
					Str("payload", e.Payload).
					Msg("Session event")
			},
		})
	}, cfg.Viewer.MaxViewers, logger)

	return app, nil
}

// newObserver returns the observation mechanism for a viewport mode.
func newObserver(mode string) domain.Observer {
	switch mode {
	case "none":
		return viewport.Unsupported{}
	default:
		return viewport.New()
	}
}

func catalogPool(cfg *config.Config) store.PoolOptions {
	if cfg.Catalog.Driver == "postgres" {
		return store.PoolOptions{
			MaxOpenConns:    cfg.Catalog.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Catalog.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Catalog.Postgres.ConnMaxLifetime,
		}
	}
	return store.PoolOptions{MaxOpenConns: cfg.Catalog.SQLite.MaxOpenConns}
}

// Close shuts every viewer down and releases connections.
func (a *App) Close() {
	if a.Registry != nil {
		a.Registry.CloseAll()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
