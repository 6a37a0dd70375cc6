package transcript

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

// Open builds the configured sink.
func Open(cfg config.TranscriptConfig, log *logger.Logger) (Sink, error) {
	switch cfg.Backend {
	case "", "jsonl":
		return NewJSONLSink(cfg.Path)
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
		return OpenGorm("sqlite", cfg.Path, log)
	case "postgres":
		return OpenGorm("postgres", cfg.DSN, log)
	case "none":
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unsupported transcript backend %q", cfg.Backend)
	}
}
