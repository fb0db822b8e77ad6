// Package app wires the Arrow3 client's dependency graph: configuration,
// logging, tracing, the token store, the API transport, the session manager,
// the request cache, and the storefront services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KshitijGomber/arrow3-sub001/internal/cache"
	"github.com/KshitijGomber/arrow3-sub001/internal/config"
	"github.com/KshitijGomber/arrow3-sub001/internal/session"
	"github.com/KshitijGomber/arrow3-sub001/internal/storefront"
	"github.com/KshitijGomber/arrow3-sub001/internal/tokenstore"
	"github.com/KshitijGomber/arrow3-sub001/internal/transport"
	"github.com/KshitijGomber/arrow3-sub001/pkg/tracing"
)

// App holds the wired client.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          tokenstore.Store
	api            *transport.Client
	session        *session.Manager
	cache          *cache.Store
	services       *storefront.Services
	tracerShutdown func(context.Context) error
}

// New creates an App with all dependencies wired.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "arrow3",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	store, err := newTokenStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open token store: %w", err)
	}
	logger.Debug("token store ready", slog.String("backend", cfg.TokenStore))

	// The transport and the session manager reference each other: the client
	// pulls tokens from the session, the session calls the auth endpoints
	// through the client. The closures below break the construction cycle.
	var mgr *session.Manager

	breaker := transport.NewBreaker(
		transport.NewHTTPClient(cfg.RequestTimeout),
		transport.DefaultBreakerConfig("arrow3-api"),
		logger,
	)
	api := transport.New(transport.Config{
		BaseURL:      cfg.APIBaseURL,
		Timeout:      cfg.RequestTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryWaitMin: time.Second,
		RetryWaitMax: 5 * time.Second,
	}, logger,
		transport.WithDoer(breaker),
		transport.WithTokenProvider(func(ctx context.Context) string {
			return mgr.Token(ctx)
		}),
		transport.WithRefresh(func(ctx context.Context) (string, error) {
			return mgr.Refresh(ctx)
		}),
	)

	mgr = session.New(api, store, session.Config{
		GoogleClientID:    cfg.GoogleClientID,
		OAuthCallbackPort: cfg.OAuthCallbackPort,
		AuthorizeBaseURL:  cfg.APIBaseURL,
		RefreshWindow:     cfg.RefreshWindow,
	}, logger)

	cacheStore := cache.New(cache.Config{
		StaleAfter: cfg.CacheStaleAfter,
		EvictAfter: cfg.CacheEvictAfter,
	}, logger)

	return &App{
		cfg:            cfg,
		logger:         logger,
		store:          store,
		api:            api,
		session:        mgr,
		cache:          cacheStore,
		services:       storefront.New(api, cacheStore, logger),
		tracerShutdown: tracerShutdown,
	}, nil
}

func newTokenStore(ctx context.Context, cfg *config.Config) (tokenstore.Store, error) {
	switch cfg.TokenStore {
	case config.StoreFile:
		path, err := tokenstore.DefaultCredentialsPath()
		if err != nil {
			return nil, err
		}
		return tokenstore.NewFileStore(path)
	case config.StoreRedis:
		return tokenstore.NewRedisStore(ctx, tokenstore.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	case config.StoreMemory:
		return tokenstore.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store backend %q", cfg.TokenStore)
	}
}

// Bootstrap hydrates the session from persisted credentials.
func (a *App) Bootstrap(ctx context.Context) session.State {
	return a.session.Bootstrap(ctx)
}

// Session returns the session manager.
func (a *App) Session() *session.Manager { return a.session }

// Services returns the storefront resource services.
func (a *App) Services() *storefront.Services { return a.services }

// Config returns the loaded configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger { return a.logger }

// Health probes the backend API.
func (a *App) Health(ctx context.Context) error {
	return a.api.Health(ctx)
}

// Close releases all resources: cache janitor, token store, pending spans.
func (a *App) Close() error {
	var errs []error

	a.cache.Close()

	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close token store: %w", err))
	}

	if a.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := a.tracerShutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer: %w", err))
		}
	}

	return errors.Join(errs...)
}
