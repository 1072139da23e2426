package uploader

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	pkgerrors "github.com/pkg/errors"

	"sqlancer/internal/config"
	"sqlancer/internal/util"
)

// S3Uploader uploads case directories to S3 or an S3-compatible endpoint.
type S3Uploader struct {
	cfg    config.S3Config
	client *s3.Client
}

// NewS3 builds a client from the configuration. Static credentials are
// used when both keys are set; otherwise the default chain applies.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Uploader, error) {
	if !cfg.Enabled {
		return &S3Uploader{cfg: cfg}, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load aws config")
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Uploader{cfg: cfg, client: client}, nil
}

// Enabled reports whether S3 uploads are configured.
func (u *S3Uploader) Enabled() bool { return u.cfg.Enabled }

// UploadDir uploads a case directory and returns its s3:// prefix.
func (u *S3Uploader) UploadDir(ctx context.Context, dir string) (string, error) {
	if !u.cfg.Enabled {
		return "", nil
	}
	if u.client == nil {
		return "", pkgerrors.New("s3 uploader is not initialized")
	}
	prefix := objectPrefix(u.cfg.Prefix, dir)
	err := walkFiles(dir, prefix, func(path, key string) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer util.CloseWithErr(file, "s3 upload file")
		info, err := file.Stat()
		if err != nil {
			return err
		}
		_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(u.cfg.Bucket),
			Key:           aws.String(key),
			Body:          file,
			ContentLength: aws.Int64(info.Size()),
		})
		return err
	})
	if err != nil {
		return "", err
	}
	return "s3://" + u.cfg.Bucket + "/" + prefix, nil
}
