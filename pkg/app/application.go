package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/zuulview/zuulview/internal/fetcher"
	"github.com/zuulview/zuulview/internal/middleware"
	"github.com/zuulview/zuulview/internal/ratelimit"
	"github.com/zuulview/zuulview/internal/services"
	"github.com/zuulview/zuulview/internal/tracing"
	"github.com/zuulview/zuulview/internal/transport"
	"github.com/zuulview/zuulview/internal/zuulapi"
	"github.com/zuulview/zuulview/pkg/config"
	"github.com/zuulview/zuulview/pkg/store"

	_ "github.com/zuulview/zuulview/pkg/store/memory" // register memory store provider
	_ "github.com/zuulview/zuulview/pkg/store/redis"  // register redis store provider
)

type Application struct {
	Config          *config.Config
	Engine          *gin.Engine
	Store           store.Store
	Orchestrator    *fetcher.Orchestrator
	BuildInfo       services.BuildInfoService
	Logger          *slog.Logger
	RateLimiter     ratelimit.Limiter
	TracingShutdown func(ctx context.Context) error
}

// ApplicationOption configures the Application.
type ApplicationOption func(*Application) error

// WithStore overrides the configured store backend.
func WithStore(st store.Store) ApplicationOption {
	return func(app *Application) error {
		app.Store = st
		return nil
	}
}

func NewApplication(cfg *config.Config, opts ...ApplicationOption) (*Application, error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	if cfg.LogFormat == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	logger := slog.New(handler).With("service", "zuulview", "env", cfg.Env)
	slog.SetDefault(logger)

	app := &Application{Config: cfg, Logger: logger}
	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	if app.Store == nil {
		st, err := newStore(cfg)
		if err != nil {
			return nil, err
		}
		app.Store = st
	}

	if cfg.Store.Type == "redis" && cfg.RateLimit.API.RequestsPerMinute > 0 {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		app.RateLimiter = ratelimit.NewTokenBucketLimiter(rdb)
	}

	shutdown, err := tracing.Setup(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		OTLPInsecure: cfg.Tracing.OTLPInsecure,
		SampleRatio:  cfg.Tracing.SampleRatio,
	}, logger)
	if err != nil {
		// Tracing is best effort; a broken exporter must not block startup.
		logger.Warn("tracing setup failed", "err", err)
		shutdown = func(context.Context) error { return nil }
	}
	app.TracingShutdown = shutdown

	get := transport.NewClient(&http.Client{
		Timeout: time.Duration(cfg.FetchTimeoutSeconds) * time.Second,
	})
	api := zuulapi.NewClient(cfg.ZuulAPIURL, get)
	app.Orchestrator = fetcher.New(api, get, app.Store,
		fetcher.WithEvents(slogEvents{logger}),
		fetcher.WithLogger(logger),
	)
	app.BuildInfo = services.NewBuildInfoService(app.Orchestrator, app.Store)

	engine := gin.New()
	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.LoggerMiddleware(logger),
		middleware.TracingMiddleware(cfg.Tracing.ServiceName),
	)
	app.Engine = engine

	return app, nil
}

func newStore(cfg *config.Config) (store.Store, error) {
	var raw json.RawMessage
	if cfg.Store.Type == "redis" {
		b, err := json.Marshal(map[string]any{
			"addr":     cfg.Store.Redis.Addr,
			"password": cfg.Store.Redis.Password,
			"db":       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("encode store config: %w", err)
		}
		raw = b
	}
	return store.NewStore(
		store.ProviderConfig{Type: cfg.Store.Type, Config: raw},
		store.PluginConfig{TTL: time.Duration(cfg.CacheTTLSeconds) * time.Second},
	)
}
