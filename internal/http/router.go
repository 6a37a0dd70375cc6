package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/eduai-mentor/internal/http/handlers"
	httpMW "github.com/yungbote/eduai-mentor/internal/http/middleware"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type RouterConfig struct {
	Log     *logger.Logger
	Metrics *observability.Metrics

	// ServiceName enables otelgin spans when set.
	ServiceName     string
	CORSOrigins     []string
	MaxRequestBytes int64
	MaxUploadBytes  int64

	// UploadsDir is served under UploadsPrefix when attachments are stored locally.
	UploadsDir    string
	UploadsPrefix string

	MentorHandler  *httpH.MentorHandler
	SessionHandler *httpH.SessionHandler
	CodeHandler    *httpH.CodeHandler
	UploadHandler  *httpH.UploadHandler
	LogHandler     *httpH.LogHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	if err := httpH.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if strings.TrimSpace(cfg.ServiceName) != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.UploadsDir != "" && cfg.UploadsPrefix != "" {
		r.Static(cfg.UploadsPrefix, cfg.UploadsDir)
	}

	api := r.Group("/api")
	jsonAPI := api.Group("/", httpMW.LimitBody(cfg.MaxRequestBytes))
	{
		// Mentor (stateless)
		if cfg.MentorHandler != nil {
			jsonAPI.POST("/mentor", cfg.MentorHandler.Reply)
		}

		// Sessions
		if cfg.SessionHandler != nil {
			sessions := jsonAPI.Group("/sessions/:id", httpMW.SessionScope())
			sessions.GET("", cfg.SessionHandler.GetSession)
			sessions.POST("/turns", cfg.SessionHandler.SubmitTurn)
			sessions.POST("/reset", cfg.SessionHandler.ResetSession)
			sessions.POST("/code", cfg.SessionHandler.GenerateCode)
		}

		// Code
		if cfg.CodeHandler != nil {
			jsonAPI.POST("/code", cfg.CodeHandler.Generate)
		}

		// Transcript log
		if cfg.LogHandler != nil {
			jsonAPI.POST("/log", cfg.LogHandler.Append)
			jsonAPI.GET("/log", cfg.LogHandler.Recent)
		}
	}

	// Uploads carry their own, larger body limit.
	if cfg.UploadHandler != nil {
		api.POST("/upload", httpMW.LimitBody(cfg.MaxUploadBytes), cfg.UploadHandler.Upload)
		api.GET("/upload", cfg.UploadHandler.List)
	}

	return r, nil
}
