package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/eduai-mentor/internal/config"
	httpserver "github.com/yungbote/eduai-mentor/internal/http"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type App struct {
	Log        *logger.Logger
	Cfg        *config.Config
	Metrics    *observability.Metrics
	Clients    Clients
	Controller *session.Controller
	Server     *httpserver.Server

	otelShutdown func(context.Context) error
}

// New wires every collaborator from cfg. Close must be called even when Run is never reached.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, version string) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if log == nil {
		log = logger.Nop()
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}
	otelShutdown := observability.InitOTel(ctx, log, cfg.Observability, observability.OtelConfig{
		ServiceName: cfg.Observability.ServiceName,
		Environment: cfg.Env,
		Version:     version,
	})

	log.Info("Wiring clients...")
	clients, err := wireClients(ctx, cfg, log, metrics)
	if err != nil {
		return nil, err
	}

	ctrl := wireController(cfg, log, metrics, clients)

	log.Info("Wiring handlers...")
	server, err := wireServer(cfg, log, metrics, clients, ctrl)
	if err != nil {
		clients.Close(ctx, log)
		return nil, err
	}

	if !cfg.CredentialPresent() {
		log.Warn("no upstream credential configured; mentor will answer with offline replies")
	}

	return &App{
		Log:          log,
		Cfg:          cfg,
		Metrics:      metrics,
		Clients:      clients,
		Controller:   ctrl,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	if rdb := a.Clients.RedisClient(); rdb != nil {
		a.Metrics.StartRedisCollector(gctx, a.Log, rdb, 15*time.Second)
	}

	g.Go(func() error {
		a.Log.Info("HTTP server listening", "addr", a.Server.Addr())
		return a.Server.Run(gctx, a.Cfg.HTTP.ShutdownTimeout.Duration)
	})
	return g.Wait()
}

// Close drains the transcript queue and releases stores. It is safe to call more than once.
func (a *App) Close(ctx context.Context) {
	if a == nil {
		return
	}
	a.Clients.Close(ctx, a.Log)
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Log.Warn("otel shutdown failed", "error", err)
		}
		a.otelShutdown = nil
	}
	a.Log.Sync()
}
