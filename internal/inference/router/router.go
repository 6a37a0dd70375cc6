package router

import (
	"fmt"
	"strings"

	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/inference/engine"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/mock"
	"github.com/yungbote/eduai-mentor/internal/inference/engine/oaihttp"
)

// NewEngine selects the upstream engine named by cfg.Type.
func NewEngine(cfg config.EngineConfig) (engine.Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "mock":
		return mock.New(), nil
	case "", "openai_http", "oai_http":
		return oaihttp.New(cfg)
	default:
		return nil, fmt.Errorf("unsupported engine type %q", cfg.Type)
	}
}
