package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Skotchmaster/nolmart/internal/logging"
)

const MaxUploadSize = 25 << 20

var allowedMedia = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".webm": true,
}

// Media stores uploaded product images and videos on disk and returns the public URL for them.
type Media struct {
	Dir     string
	BaseURL string
}

func (m *Media) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedMedia[ext] {
		return "", fmt.Errorf("%w: unsupported file type %q", ErrValidation, ext)
	}
	if err := os.MkdirAll(m.Dir, 0o755); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(m.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(r, MaxUploadSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > MaxUploadSize {
		err = fmt.Errorf("%w: file larger than %d bytes", ErrValidation, MaxUploadSize)
	}
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}

	logging.FromContext(ctx).Info("media stored", "file", name, "bytes", n)
	return strings.TrimSuffix(m.BaseURL, "/") + "/" + name, nil
}
