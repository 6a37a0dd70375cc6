package attachments

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/yungbote/eduai-mentor/internal/config"
	"github.com/yungbote/eduai-mentor/internal/platform/logger"
)

type GCSStore struct {
	log           *logger.Logger
	client        *storage.Client
	bucket        string
	emulatorHost  string
	publicBaseURL string
	now           func() time.Time
}

func NewGCSStore(ctx context.Context, cfg config.AttachmentConfig, baseLog *logger.Logger) (*GCSStore, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	serviceLog := baseLog.With("service", "AttachmentBucket")
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, &ConfigError{Code: ConfigErrorMissingBucket, Backend: cfg.Backend}
	}

	emulatorHost := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/")
	emulator := cfg.Backend == "gcs_emulator" || emulatorHost != ""
	if emulator && emulatorHost == "" {
		return nil, &ConfigError{Code: ConfigErrorMissingEmulatorHost, Backend: cfg.Backend}
	}

	client, err := newStorageClient(ctx, emulator, emulatorHost)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	publicBase := strings.TrimRight(strings.TrimSpace(cfg.PublicBaseURL), "/")
	if publicBase != "" {
		if u, perr := url.Parse(publicBase); perr != nil || u.Scheme == "" || u.Host == "" {
			_ = client.Close()
			return nil, &ConfigError{Code: ConfigErrorInvalidPublicBase, Backend: cfg.Backend, Detail: publicBase}
		}
	}

	serviceLog.Info("Attachment storage initialized",
		"bucket", bucket,
		"emulator", emulator,
		"emulator_host", emulatorHost,
		"public_base_url", publicBase,
	)
	return &GCSStore{
		log:           serviceLog,
		client:        client,
		bucket:        bucket,
		emulatorHost:  emulatorHost,
		publicBaseURL: publicBase,
		now:           time.Now,
	}, nil
}

func newStorageClient(ctx context.Context, emulator bool, emulatorHost string) (*storage.Client, error) {
	if emulator {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", emulatorHost)
		return storage.NewClient(ctx, option.WithoutAuthentication())
	}
	opts := clientOptionsFromEnv()
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	return storage.NewClient(ctx, opts...)
}

func clientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	opts := []option.ClientOption{}
	if creds == "" {
		return opts
	}
	if strings.HasPrefix(creds, "{") {
		opts = append(opts, option.WithCredentialsJSON([]byte(creds)))
	} else {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	return opts
}

func (s *GCSStore) Save(ctx context.Context, originalName string, contentType string, r io.Reader) (Attachment, error) {
	name, err := ObjectName(originalName, s.now())
	if err != nil {
		return Attachment{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	ct := contentTypeFor(originalName, contentType)
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	if ct != "" {
		w.ContentType = ct
	}
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return Attachment{}, fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Attachment{}, fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return Attachment{
		URL:  s.PublicURL(name),
		Name: displayName(originalName),
		Size: n,
		Type: ct,
	}, nil
}

func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{})
	out := []string{}
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		out = append(out, s.PublicURL(attrs.Name))
	}
	return out, nil
}

func (s *GCSStore) PublicURL(key string) string {
	return publicURL(s.bucket, key, s.publicBaseURL, s.emulatorHost)
}

func publicURL(bucket, key, publicBase, emulatorHost string) string {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if emulatorHost != "" {
		base := publicBase
		if base == "" {
			base = emulatorHost
		}
		return fmt.Sprintf("%s/storage/v1/b/%s/o/%s?alt=media", base, url.PathEscape(bucket), url.PathEscape(key))
	}
	if publicBase != "" {
		return fmt.Sprintf("%s/%s/%s", publicBase, bucket, key)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, key)
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
