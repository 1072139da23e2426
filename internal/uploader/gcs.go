package uploader

import (
	"context"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	pkgerrors "github.com/pkg/errors"
	"google.golang.org/api/option"

	"sqlancer/internal/config"
	"sqlancer/internal/util"
)

// GCSUploader uploads case directories to Google Cloud Storage.
type GCSUploader struct {
	cfg    config.GCSConfig
	client *storage.Client
}

// NewGCS builds a client, reading credentials from a file when one is set.
func NewGCS(ctx context.Context, cfg config.GCSConfig) (*GCSUploader, error) {
	if !cfg.Enabled {
		return &GCSUploader{cfg: cfg}, nil
	}
	var opts []option.ClientOption
	if file := strings.TrimSpace(cfg.CredentialsFile); file != "" {
		opts = append(opts, option.WithCredentialsFile(file))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "create gcs client")
	}
	return &GCSUploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether GCS uploads are configured.
func (u *GCSUploader) Enabled() bool { return u.cfg.Enabled }

// UploadDir uploads a case directory and returns its gs:// prefix.
func (u *GCSUploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", pkgerrors.New("gcs uploader is not initialized")
	}
	prefix := objectPrefix(u.cfg.Prefix, dir)
	bucket := u.client.Bucket(u.cfg.Bucket)
	err := walkFiles(dir, prefix, func(path, key string) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer util.CloseWithErr(file, "gcs upload file")
		w := bucket.Object(key).NewWriter(ctx)
		if _, err := io.Copy(w, file); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		return "", err
	}
	return "gs://" + u.cfg.Bucket + "/" + prefix, nil
}
