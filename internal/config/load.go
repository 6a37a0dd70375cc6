package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/eduai-mentor/internal/platform/envutil"
)

const defaultConfigRelPath = "config/mentor.yaml"

func Default() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			MaxRequestBytes:   1 << 20,
			MaxUploadBytes:    25 << 20,
			CORSOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:5173",
				"http://127.0.0.1:5173",
			},
		},
		Engine: EngineConfig{
			Type:                "oai_http",
			BaseURL:             "https://api.groq.com/openai",
			ChatCompletionsPath: "/v1/chat/completions",
			Timeout:             Duration{Duration: 20 * time.Second},
		},
		Mentor: MentorConfig{
			Model:         "llama-3.1-8b-instant",
			Temperature:   0.3,
			MaxTokens:     500,
			HistoryWindow: 10,
			MaxAttempts:   2,
			BackoffBase:   Duration{Duration: 250 * time.Millisecond},
			BackoffMax:    Duration{Duration: 2 * time.Second},
			CallTimeout:   Duration{Duration: 45 * time.Second},
		},
		CodeGen: CodeGenConfig{
			Model:          "llama-3.1-8b-instant",
			Temperature:    0.2,
			MaxTokens:      800,
			PromptMaxBytes: 2000,
			Timeout:        Duration{Duration: 30 * time.Second},
		},
		Sessions: SessionStoreConfig{
			Backend:   "memory",
			KeyPrefix: "mentor:session:",
			TTL:       Duration{Duration: 7 * 24 * time.Hour},
		},
		Transcript: TranscriptConfig{
			Backend:     "jsonl",
			Path:        "data/logs/logs.jsonl",
			QueueSize:   256,
			RecentLimit: 200,
		},
		Attachments: AttachmentConfig{
			Backend:      "local",
			Dir:          "data/uploads",
			PublicPrefix: "/uploads",
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: true,
			SampleRatio:    0.1,
			ServiceName:    "eduai-mentor",
		},
	}
}

// Load reads the YAML file at path (or MENTOR_CONFIG_PATH, or ./config/mentor.yaml when present)
// over the defaults, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	cfgPath := strings.TrimSpace(path)
	if cfgPath == "" {
		cfgPath, _ = envutil.String("MENTOR_CONFIG_PATH")
	}
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, defaultConfigRelPath)
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v, ok := envutil.String("LOG_MODE"); ok {
		cfg.Env = v
	}
	if v, ok := envutil.String("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := envutil.String("MENTOR_HTTP_ADDR"); ok {
		cfg.HTTP.Addr = v
	} else if v, ok := envutil.String("PORT"); ok {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	if v, ok := envutil.String("MENTOR_API_KEY", "GROQ_API_KEY"); ok {
		cfg.Engine.APIKey = v
	}
	if v, ok := envutil.String("MENTOR_ENGINE_TYPE"); ok {
		cfg.Engine.Type = v
	}
	if v, ok := envutil.String("MENTOR_ENGINE_BASE_URL"); ok {
		cfg.Engine.BaseURL = v
	}
	if v, ok := envutil.String("MENTOR_MODEL"); ok {
		cfg.Mentor.Model = v
	}
	cfg.Mentor.StrictContentPolicy = envutil.Bool("MENTOR_STRICT_CONTENT_POLICY", cfg.Mentor.StrictContentPolicy)
	if v, ok := envutil.String("MENTOR_CODEGEN_MODEL"); ok {
		cfg.CodeGen.Model = v
	}
	if v, ok := envutil.String("MENTOR_SESSION_BACKEND"); ok {
		cfg.Sessions.Backend = v
	}
	if v, ok := envutil.String("REDIS_ADDR"); ok {
		cfg.Sessions.RedisAddr = v
	}
	if v, ok := envutil.String("REDIS_PASSWORD"); ok {
		cfg.Sessions.RedisPassword = v
	}
	if v, ok := envutil.String("MENTOR_TRANSCRIPT_BACKEND"); ok {
		cfg.Transcript.Backend = v
	}
	if v, ok := envutil.String("MENTOR_TRANSCRIPT_PATH"); ok {
		cfg.Transcript.Path = v
	}
	if v, ok := envutil.String("MENTOR_TRANSCRIPT_DSN"); ok {
		cfg.Transcript.DSN = v
	}
	if v, ok := envutil.String("MENTOR_ATTACHMENT_BACKEND"); ok {
		cfg.Attachments.Backend = v
	}
	if v, ok := envutil.String("MENTOR_UPLOAD_DIR"); ok {
		cfg.Attachments.Dir = v
	}
	if v, ok := envutil.String("MENTOR_GCS_BUCKET"); ok {
		cfg.Attachments.Bucket = v
	}
	if v, ok := envutil.String("STORAGE_EMULATOR_HOST"); ok {
		cfg.Attachments.EmulatorHost = v
	}
	if v, ok := envutil.String("OBJECT_STORAGE_PUBLIC_BASE_URL"); ok {
		cfg.Attachments.PublicBaseURL = v
	}
	cfg.Observability.OTelEnabled = envutil.Bool("OTEL_ENABLED", cfg.Observability.OTelEnabled)
	if v, ok := envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT"); ok {
		cfg.Observability.OTelEndpoint = v
	}
	cfg.Observability.OTelInsecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", cfg.Observability.OTelInsecure)
	cfg.Observability.SampleRatio = envutil.Float("OTEL_SAMPLER_RATIO", cfg.Observability.SampleRatio)
}

func normalize(cfg *Config) error {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "development"
	}
	if strings.TrimSpace(cfg.HTTP.Addr) == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.MaxRequestBytes <= 0 {
		cfg.HTTP.MaxRequestBytes = 1 << 20
	}
	if cfg.HTTP.MaxUploadBytes <= 0 {
		cfg.HTTP.MaxUploadBytes = 25 << 20
	}

	e := &cfg.Engine
	e.Type = strings.ToLower(strings.TrimSpace(e.Type))
	e.APIKey = strings.TrimSpace(e.APIKey)
	e.BaseURL = strings.TrimRight(strings.TrimSpace(e.BaseURL), "/")
	switch e.Type {
	case "", "oai_http", "openai_http":
		e.Type = "oai_http"
		if e.BaseURL == "" {
			return errors.New("engine.base_url is required for oai_http")
		}
	case "mock":
	default:
		return fmt.Errorf("unsupported engine.type %q", e.Type)
	}
	if strings.TrimSpace(e.ChatCompletionsPath) == "" {
		e.ChatCompletionsPath = "/v1/chat/completions"
	}
	if e.Timeout.Duration <= 0 {
		e.Timeout = Duration{Duration: 20 * time.Second}
	}

	m := &cfg.Mentor
	if strings.TrimSpace(m.Model) == "" {
		return errors.New("mentor.model is required")
	}
	if m.MaxAttempts <= 0 {
		return fmt.Errorf("mentor.max_attempts must be positive, got %d", m.MaxAttempts)
	}
	if m.HistoryWindow <= 0 {
		return fmt.Errorf("mentor.history_window must be positive, got %d", m.HistoryWindow)
	}
	if m.MaxTokens <= 0 {
		m.MaxTokens = 500
	}
	if m.BackoffBase.Duration < 0 || m.BackoffMax.Duration < 0 {
		return errors.New("mentor backoff durations must not be negative")
	}

	c := &cfg.CodeGen
	if strings.TrimSpace(c.Model) == "" {
		c.Model = m.Model
	}
	if strings.TrimSpace(c.APIKey) == "" {
		c.APIKey = e.APIKey
	}
	if strings.TrimSpace(c.BaseURL) == "" && e.BaseURL != "" {
		c.BaseURL = e.BaseURL + "/v1"
	}
	if c.PromptMaxBytes <= 0 {
		c.PromptMaxBytes = 2000
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 800
	}

	s := &cfg.Sessions
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	switch s.Backend {
	case "", "memory":
		s.Backend = "memory"
	case "redis":
		if strings.TrimSpace(s.RedisAddr) == "" {
			return errors.New("sessions.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unsupported sessions.backend %q", s.Backend)
	}

	t := &cfg.Transcript
	t.Backend = strings.ToLower(strings.TrimSpace(t.Backend))
	switch t.Backend {
	case "", "jsonl":
		t.Backend = "jsonl"
		if strings.TrimSpace(t.Path) == "" {
			return errors.New("transcript.path is required for the jsonl backend")
		}
	case "sqlite":
		if strings.TrimSpace(t.Path) == "" {
			return errors.New("transcript.path is required for the sqlite backend")
		}
	case "postgres":
		if strings.TrimSpace(t.DSN) == "" {
			return errors.New("transcript.dsn is required for the postgres backend")
		}
	case "none":
	default:
		return fmt.Errorf("unsupported transcript.backend %q", t.Backend)
	}
	if t.QueueSize <= 0 {
		t.QueueSize = 256
	}
	if t.RecentLimit <= 0 {
		t.RecentLimit = 200
	}

	a := &cfg.Attachments
	a.Backend = strings.ToLower(strings.TrimSpace(a.Backend))
	switch a.Backend {
	case "", "local":
		a.Backend = "local"
		if strings.TrimSpace(a.Dir) == "" {
			return errors.New("attachments.dir is required for the local backend")
		}
	case "gcs", "gcs_emulator":
		if strings.TrimSpace(a.Bucket) == "" {
			return errors.New("attachments.bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unsupported attachments.backend %q", a.Backend)
	}
	if strings.TrimSpace(a.PublicPrefix) == "" {
		a.PublicPrefix = "/uploads"
	}

	o := &cfg.Observability
	if o.SampleRatio < 0 {
		o.SampleRatio = 0
	}
	if o.SampleRatio > 1 {
		o.SampleRatio = 1
	}
	if strings.TrimSpace(o.ServiceName) == "" {
		o.ServiceName = "eduai-mentor"
	}
	return nil
}
