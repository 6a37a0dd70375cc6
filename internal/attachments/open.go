package attachments

import (
	"context"

	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

func Open(ctx context.Context, cfg config.AttachmentConfig, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Dir, cfg.PublicPrefix)
	case "gcs", "gcs_emulator":
		return NewGCSStore(ctx, cfg, log)
	default:
		return nil, &ConfigError{Code: ConfigErrorInvalidBackend, Backend: cfg.Backend}
	}
}
