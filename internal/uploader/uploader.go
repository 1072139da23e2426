// Package uploader copies finished case directories to object storage.
package uploader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/config"
)

// Uploader ships a case directory and returns where it landed.
type Uploader interface {
	Enabled() bool
	UploadDir(ctx context.Context, dir string) (string, error)
}

// NoopUploader is used when no storage is configured.
type NoopUploader struct{}

func (NoopUploader) Enabled() bool { return false }

func (NoopUploader) UploadDir(context.Context, string) (string, error) { return "", nil }

// New picks the configured backend. GCS wins when both are enabled.
func New(ctx context.Context, cfg config.StorageConfig) (Uploader, error) {
	switch {
	case cfg.GCS.Enabled:
		return NewGCS(ctx, cfg.GCS)
	case cfg.S3.Enabled:
		return NewS3(ctx, cfg.S3)
	}
	return NoopUploader{}, nil
}

// objectPrefix joins the configured prefix and the case directory name.
func objectPrefix(prefix, dir string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return filepath.Base(dir) + "/"
	}
	return prefix + "/" + filepath.Base(dir) + "/"
}

// walkFiles calls put for every regular file directly inside dir with the
// object key it should be stored under.
func walkFiles(dir, prefix string, put func(path, key string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return pkgerrors.Wrap(err, "read case dir")
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := put(filepath.Join(dir, entry.Name()), prefix+entry.Name()); err != nil {
			return pkgerrors.Wrapf(err, "upload %s", entry.Name())
		}
	}
	return nil
}
