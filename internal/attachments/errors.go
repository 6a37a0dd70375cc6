package attachments

import "fmt"

type ConfigErrorCode string

const (
	ConfigErrorInvalidBackend      ConfigErrorCode = "invalid_backend"
	ConfigErrorMissingDir          ConfigErrorCode = "missing_dir"
	ConfigErrorMissingBucket       ConfigErrorCode = "missing_bucket"
	ConfigErrorMissingEmulatorHost ConfigErrorCode = "missing_emulator_host"
	ConfigErrorInvalidPublicBase   ConfigErrorCode = "invalid_public_base_url"
)

// ConfigError reports an attachments configuration that cannot produce a store.
type ConfigError struct {
	Code    ConfigErrorCode
	Backend string
	Detail  string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "attachments config error"
	}
	if e.Detail != "" {
		return fmt.Sprintf("attachments %s: %s (%s)", e.Backend, e.Code, e.Detail)
	}
	return fmt.Sprintf("attachments %s: %s", e.Backend, e.Code)
}
