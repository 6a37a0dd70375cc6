package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes "5s"-style strings (or integer nanoseconds) from YAML and JSON.
type Duration struct {
	Duration time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	return d.parse(value.Value)
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		d.Duration = 0
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		u, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = u
	}
	return d.parse(s)
}

func (d *Duration) parse(raw string) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		d.Duration = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		d.Duration = time.Duration(n)
		return nil
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or an int nanoseconds: %w", err)
	}
	d.Duration = dd
	return nil
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	MaxRequestBytes   int64    `yaml:"max_request_bytes"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	CORSOrigins       []string `yaml:"cors_origins"`
}

// EngineConfig describes the OpenAI-compatible chat-completions upstream.
type EngineConfig struct {
	// Type is "oai_http" for a real upstream or "mock" for a local scripted engine.
	Type string `yaml:"type"`

	BaseURL string `yaml:"base_url"`

	// APIKey is the upstream credential. When blank the mentor answers from canned offline replies.
	APIKey string `yaml:"api_key"`

	ChatCompletionsPath string `yaml:"chat_completions_path"`

	// Timeout bounds a single upstream attempt.
	Timeout Duration `yaml:"timeout"`
}

type MentorConfig struct {
	Model         string  `yaml:"model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	HistoryWindow int     `yaml:"history_window"`

	// MaxAttempts is the total number of upstream attempts per reply, not the number of retries.
	MaxAttempts int      `yaml:"max_attempts"`
	BackoffBase Duration `yaml:"backoff_base"`
	BackoffMax  Duration `yaml:"backoff_max"`

	// CallTimeout bounds the whole reply including retries.
	CallTimeout Duration `yaml:"call_timeout"`

	// StrictContentPolicy re-asks when a reply outside the answer phase contains code formatting.
	StrictContentPolicy bool `yaml:"strict_content_policy"`
}

type CodeGenConfig struct {
	Model          string   `yaml:"model"`
	Temperature    float32  `yaml:"temperature"`
	MaxTokens      int      `yaml:"max_tokens"`
	BaseURL        string   `yaml:"base_url"`
	APIKey         string   `yaml:"api_key"`
	PromptMaxBytes int      `yaml:"prompt_max_bytes"`
	Timeout        Duration `yaml:"timeout"`
}

type SessionStoreConfig struct {
	// Backend is "memory" or "redis".
	Backend       string   `yaml:"backend"`
	RedisAddr     string   `yaml:"redis_addr"`
	RedisPassword string   `yaml:"redis_password"`
	RedisDB       int      `yaml:"redis_db"`
	KeyPrefix     string   `yaml:"key_prefix"`
	TTL           Duration `yaml:"ttl"`
}

type TranscriptConfig struct {
	// Backend is "jsonl", "sqlite", "postgres" or "none".
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	QueueSize   int    `yaml:"queue_size"`
	RecentLimit int    `yaml:"recent_limit"`
}

type AttachmentConfig struct {
	// Backend is "local" or "gcs".
	Backend       string `yaml:"backend"`
	Dir           string `yaml:"dir"`
	PublicPrefix  string `yaml:"public_prefix"`
	Bucket        string `yaml:"bucket"`
	EmulatorHost  string `yaml:"emulator_host"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool    `yaml:"metrics_enabled"`
	OTelEnabled    bool    `yaml:"otel_enabled"`
	OTelEndpoint   string  `yaml:"otel_endpoint"`
	OTelInsecure   bool    `yaml:"otel_insecure"`
	SampleRatio    float64 `yaml:"sample_ratio"`
	ServiceName    string  `yaml:"service_name"`
}

type Config struct {
	Env           string              `yaml:"env"`
	LogLevel      string              `yaml:"log_level"`
	HTTP          HTTPConfig          `yaml:"http"`
	Engine        EngineConfig        `yaml:"engine"`
	Mentor        MentorConfig        `yaml:"mentor"`
	CodeGen       CodeGenConfig       `yaml:"codegen"`
	Sessions      SessionStoreConfig  `yaml:"sessions"`
	Transcript    TranscriptConfig    `yaml:"transcript"`
	Attachments   AttachmentConfig    `yaml:"attachments"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// CredentialPresent reports whether upstream calls can be made at all.
func (c *Config) CredentialPresent() bool {
	return c != nil && strings.TrimSpace(c.Engine.APIKey) != ""
}
