package app

import (
	"context"

	"github.com/yungbote/eduai-mentor/internal/attachments"
	"github.com/yungbote/eduai-mentor/internal/config"
	httpserver "github.com/yungbote/eduai-mentor/internal/http"
	httpH "github.com/yungbote/eduai-mentor/internal/http/handlers"
	"github.com/yungbote/eduai-mentor/internal/mentor/orchestrator"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/httpx"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

func wireController(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, clients Clients) *session.Controller {
	orch := orchestrator.New(clients.Engine, orchestrator.Options{
		Model:               cfg.Mentor.Model,
		Temperature:         cfg.Mentor.Temperature,
		MaxTokens:           cfg.Mentor.MaxTokens,
		CallTimeout:         cfg.Mentor.CallTimeout.Duration,
		StrictContentPolicy: cfg.Mentor.StrictContentPolicy,
		Retry: orchestrator.RetryPolicy{
			MaxAttempts: cfg.Mentor.MaxAttempts,
			Backoff:     httpx.ExponentialBackoff(cfg.Mentor.BackoffBase.Duration, cfg.Mentor.BackoffMax.Duration),
		},
	}, log, metrics)

	var emitter session.Emitter
	if clients.Worker != nil {
		emitter = clients.Worker
	}
	return session.NewController(clients.Sessions, orch, clients.Coder, emitter, metrics, log, session.Options{
		HistoryWindow:     cfg.Mentor.HistoryWindow,
		CredentialPresent: cfg.CredentialPresent(),
		PromptMaxBytes:    cfg.CodeGen.PromptMaxBytes,
	})
}

func wireServer(cfg *config.Config, log *logger.Logger, metrics *observability.Metrics, clients Clients, ctrl *session.Controller) (*httpserver.Server, error) {
	rc := httpserver.RouterConfig{
		Log:             log,
		Metrics:         metrics,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		MaxRequestBytes: cfg.HTTP.MaxRequestBytes,
		MaxUploadBytes:  cfg.HTTP.MaxUploadBytes,

		MentorHandler:  httpH.NewMentorHandler(log, ctrl),
		SessionHandler: httpH.NewSessionHandler(log, ctrl),
		CodeHandler:    httpH.NewCodeHandler(ctrl),
		UploadHandler:  httpH.NewUploadHandler(log, clients.Attachments),
		LogHandler:     httpH.NewLogHandler(log, clients.Transcript, cfg.Transcript.RecentLimit),
		HealthHandler:  httpH.NewHealthHandler(healthBackends(cfg), healthPing(clients)),
	}
	if cfg.Observability.OTelEnabled {
		rc.ServiceName = cfg.Observability.ServiceName
		if rc.ServiceName == "" {
			rc.ServiceName = "eduai-mentor"
		}
	}
	if ls, ok := clients.Attachments.(*attachments.LocalStore); ok {
		rc.UploadsDir = ls.Dir()
		rc.UploadsPrefix = ls.PublicPrefix()
	}
	return httpserver.NewServer(cfg.HTTP, rc)
}

func healthBackends(cfg *config.Config) httpH.Backends {
	upstream := "offline"
	if cfg.CredentialPresent() {
		upstream = "live"
	}
	return httpH.Backends{
		Sessions:    orDefault(cfg.Sessions.Backend, "memory"),
		Transcript:  orDefault(cfg.Transcript.Backend, "jsonl"),
		Attachments: orDefault(cfg.Attachments.Backend, "local"),
		Upstream:    upstream,
	}
}

func healthPing(clients Clients) func(ctx context.Context) error {
	rdb := clients.RedisClient()
	if rdb == nil {
		return nil
	}
	return func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
