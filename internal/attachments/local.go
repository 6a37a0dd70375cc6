package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LocalStore writes uploads into a directory served under PublicPrefix.
type LocalStore struct {
	dir          string
	publicPrefix string
	now          func() time.Time
}

func NewLocalStore(dir string, publicPrefix string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, &ConfigError{Code: ConfigErrorMissingDir, Backend: "local"}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("local attachments: %w", err)
	}
	prefix := "/" + strings.Trim(strings.TrimSpace(publicPrefix), "/")
	if prefix == "/" {
		prefix = "/uploads"
	}
	return &LocalStore{dir: dir, publicPrefix: prefix, now: time.Now}, nil
}

func (s *LocalStore) Dir() string          { return s.dir }
func (s *LocalStore) PublicPrefix() string { return s.publicPrefix }

func (s *LocalStore) Save(ctx context.Context, originalName string, contentType string, r io.Reader) (Attachment, error) {
	if err := ctx.Err(); err != nil {
		return Attachment{}, err
	}
	name, err := ObjectName(originalName, s.now())
	if err != nil {
		return Attachment{}, err
	}
	full := filepath.Join(s.dir, name)
	f, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Attachment{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(full)
		return Attachment{}, fmt.Errorf("write upload: %w", err)
	}
	return Attachment{
		URL:  path.Join(s.publicPrefix, name),
		Name: displayName(originalName),
		Size: n,
		Type: contentTypeFor(originalName, contentType),
	}, nil
}

func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if os.IsNotExist(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		out = append(out, path.Join(s.publicPrefix, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (s *LocalStore) Close() error { return nil }
