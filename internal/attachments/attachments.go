// Package attachments stores files students attach to their turns.
package attachments

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Attachment describes a stored upload. URL is what later turns reference.
type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
}

type Store interface {
	// Save stores r under a fresh object name derived from originalName.
	Save(ctx context.Context, originalName string, contentType string, r io.Reader) (Attachment, error)
	// List returns the public URLs of stored objects.
	List(ctx context.Context) ([]string, error)
	Close() error
}

var ErrEmptyUpload = errors.New("empty upload")

const maxExtLen = 10

// ObjectName builds "<unix-ms>-<12 hex>[.<ext>]". The extension is lowercased and cut to ten characters.
func ObjectName(originalName string, now time.Time) (string, error) {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("random name: %w", err)
	}
	name := fmt.Sprintf("%d-%s", now.UnixMilli(), hex.EncodeToString(b[:]))
	if ext := SafeExt(originalName); ext != "" {
		name += "." + ext
	}
	return name, nil
}

func SafeExt(originalName string) string {
	ext := strings.TrimPrefix(filepath.Ext(strings.TrimSpace(originalName)), ".")
	if len(ext) > maxExtLen {
		ext = ext[:maxExtLen]
	}
	ext = strings.ToLower(ext)
	for _, r := range ext {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}

func displayName(originalName string) string {
	n := strings.TrimSpace(filepath.Base(strings.ReplaceAll(originalName, "\\", "/")))
	if n == "" || n == "." || n == "/" {
		return "upload"
	}
	return n
}

func contentTypeFor(name string, declared string) string {
	if ct := strings.TrimSpace(declared); ct != "" {
		return ct
	}
	return mime.TypeByExtension(filepath.Ext(name))
}
