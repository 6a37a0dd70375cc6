package app

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/eduai-mentor/internal/attachments"
	"github.com/yungbote/eduai-mentor/internal/clients/redis"
	"github.com/yungbote/eduai-mentor/internal/codegen"
	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/inference/engine"
	"github.com/yungbote/eduai-mentor/internal/inference/router"
	"github.com/yungbote/eduai-mentor/internal/mentor/session"
	"github.com/yungbote/eduai-mentor/internal/observability"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
	"github.com/yungbote/eduai-mentor/internal/transcript"
)

type Clients struct {
	Engine      engine.Engine
	Sessions    session.Store
	Transcript  transcript.Sink
	Worker      *transcript.Worker
	Attachments attachments.Store
	Coder       codegen.Generator

	closeOnce *sync.Once
}

func wireClients(ctx context.Context, cfg *config.Config, log *logger.Logger, metrics *observability.Metrics) (Clients, error) {
	c := Clients{closeOnce: &sync.Once{}}

	eng, err := router.NewEngine(cfg.Engine)
	if err != nil {
		return Clients{}, fmt.Errorf("init engine: %w", err)
	}
	c.Engine = eng

	sessions, err := session.OpenStore(cfg.Sessions, log)
	if err != nil {
		return Clients{}, fmt.Errorf("init session store: %w", err)
	}
	c.Sessions = sessions

	sink, err := transcript.Open(cfg.Transcript, log)
	if err != nil {
		c.Close(ctx, log)
		return Clients{}, fmt.Errorf("init transcript sink: %w", err)
	}
	c.Transcript = sink
	c.Worker = transcript.NewWorker(sink, cfg.Transcript.QueueSize, log, metrics)
	c.Worker.Start()

	store, err := resolveAttachmentStore(ctx, log, cfg.Attachments)
	if err != nil {
		c.Close(ctx, log)
		return Clients{}, fmt.Errorf("init attachments: %w", err)
	}
	c.Attachments = store

	c.Coder = codegen.NewOpenAIGenerator(cfg.CodeGen, log)
	return c, nil
}

// RedisClient returns the session store's client when sessions live in redis.
func (c Clients) RedisClient() *goredis.Client {
	if rs, ok := c.Sessions.(*redis.SessionStore); ok {
		return rs.Client()
	}
	return nil
}

// Close drains the worker before closing the sink it writes to.
func (c Clients) Close(ctx context.Context, log *logger.Logger) {
	if c.closeOnce == nil {
		return
	}
	c.closeOnce.Do(func() {
		if c.Worker != nil {
			if err := c.Worker.Close(ctx); err != nil {
				log.Warn("transcript worker close", "error", err)
			}
		}
		if c.Transcript != nil {
			if err := c.Transcript.Close(); err != nil {
				log.Warn("transcript sink close", "error", err)
			}
		}
		if c.Attachments != nil {
			if err := c.Attachments.Close(); err != nil {
				log.Warn("attachments close", "error", err)
			}
		}
		if c.Sessions != nil {
			if err := c.Sessions.Close(); err != nil {
				log.Warn("session store close", "error", err)
			}
		}
	})
}
