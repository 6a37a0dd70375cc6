package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yungbote/eduai-mentor/internal/attachments"
	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

var openAttachmentStore = attachments.Open

type StorageProviderBootstrapErrorCode string

const (
	StorageProviderBootstrapErrorInvalidBackend      StorageProviderBootstrapErrorCode = "invalid_backend"
	StorageProviderBootstrapErrorInvalidConfig       StorageProviderBootstrapErrorCode = "invalid_config"
	StorageProviderBootstrapErrorMissingEmulatorHost StorageProviderBootstrapErrorCode = "missing_emulator_host"
	StorageProviderBootstrapErrorConnectFailed       StorageProviderBootstrapErrorCode = "connect_failed"
)

type StorageProviderBootstrapError struct {
	Code         StorageProviderBootstrapErrorCode
	Backend      string
	EmulatorHost string
	Cause        error
}

func (e *StorageProviderBootstrapError) Error() string {
	if e == nil {
		return "attachment storage bootstrap failed"
	}
	return fmt.Sprintf(
		"attachment storage bootstrap failed (code=%s backend=%q emulator_host=%q): %v",
		e.Code,
		e.Backend,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *StorageProviderBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func resolveAttachmentStore(ctx context.Context, log *logger.Logger, cfg config.AttachmentConfig) (attachments.Store, error) {
	backend := strings.TrimSpace(cfg.Backend)
	if backend == "" {
		backend = "local"
	}
	log.Info(
		"Selecting attachment storage provider",
		"backend", backend,
		"bucket", cfg.Bucket,
		"emulator_host", cfg.EmulatorHost,
	)

	store, err := openAttachmentStore(ctx, cfg, log)
	if err != nil {
		classified := classifyStorageProviderBootstrapError(cfg, err)
		log.Error(
			"Attachment storage provider bootstrap failed",
			"backend", backend,
			"emulator_host", cfg.EmulatorHost,
			"error_code", storageProviderBootstrapErrorCode(classified),
			"error", classified,
		)
		return nil, classified
	}
	return store, nil
}

func classifyStorageProviderBootstrapError(cfg config.AttachmentConfig, err error) error {
	code := StorageProviderBootstrapErrorConnectFailed
	var cfgErr *attachments.ConfigError
	if errors.As(err, &cfgErr) {
		switch cfgErr.Code {
		case attachments.ConfigErrorInvalidBackend:
			code = StorageProviderBootstrapErrorInvalidBackend
		case attachments.ConfigErrorMissingEmulatorHost:
			code = StorageProviderBootstrapErrorMissingEmulatorHost
		default:
			code = StorageProviderBootstrapErrorInvalidConfig
		}
	}
	return &StorageProviderBootstrapError{
		Code:         code,
		Backend:      cfg.Backend,
		EmulatorHost: cfg.EmulatorHost,
		Cause:        err,
	}
}

func storageProviderBootstrapErrorCode(err error) StorageProviderBootstrapErrorCode {
	var bootstrapErr *StorageProviderBootstrapError
	if errors.As(err, &bootstrapErr) {
		if bootstrapErr.Code != "" {
			return bootstrapErr.Code
		}
	}
	return StorageProviderBootstrapErrorConnectFailed
}
