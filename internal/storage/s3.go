// Package storage mirrors saved outputs to S3-compatible object storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/adamwoolhether/bikesearch/internal/config"
	"github.com/adamwoolhether/bikesearch/query"
)

// ErrDisabled is returned by NewS3 when no endpoint is configured.
var ErrDisabled = errors.New("s3 mirror not configured")

// Mirror uploads image files and JSON caches to a bucket.
type Mirror struct {
	client *minio.Client
	bucket string
	region string
	prefix string
	logger *slog.Logger
}

// NewS3 connects a Mirror using cfg. It does not contact the endpoint.
func NewS3(cfg config.S3, logger *slog.Logger) (*Mirror, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, errors.New("s3 access key, secret key and bucket are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}

	m := Mirror{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: cfg.Prefix,
		logger: logger,
	}

	return &m, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Mirror) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", m.bucket, err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{Region: m.region}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", m.bucket, err)
	}
	m.logger.Info("bucket created", "bucket", m.bucket)

	return nil
}

// UploadFile stores the file at localPath under key and returns the full
// object key used.
func (m *Mirror) UploadFile(ctx context.Context, localPath string, key ...string) (string, error) {
	objectKey := ObjectKey(m.prefix, key...)

	opts := minio.PutObjectOptions{ContentType: contentType(localPath)}
	info, err := m.client.FPutObject(ctx, m.bucket, objectKey, localPath, opts)
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", localPath, err)
	}
	m.logger.Debug("object stored", "bucket", m.bucket, "key", objectKey, "size", info.Size)

	return objectKey, nil
}

// UploadImages stores each saved image under dir. Failures do not stop
// the remaining uploads; the number stored is returned with any errors.
func (m *Mirror) UploadImages(ctx context.Context, dir string, images []query.Image) (int, error) {
	var stored int
	var errs []error
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if _, err := m.UploadFile(ctx, img.Path, dir, filepath.Base(img.Path)); err != nil {
			m.logger.Error("mirroring image", "path", img.Path, "error", err)
			errs = append(errs, err)
			continue
		}
		stored++
	}

	return stored, errors.Join(errs...)
}

// ObjectKey joins prefix and parts with "/", sanitizing every part.
func ObjectKey(prefix string, parts ...string) string {
	elems := make([]string, 0, len(parts)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		elems = append(elems, p)
	}
	for _, part := range parts {
		if s := sanitizeKey(part); s != "" {
			elems = append(elems, s)
		}
	}

	return path.Join(elems...)
}

func sanitizeKey(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer(" ", "-", "/", "-", `\`, "-").Replace(s)

	return strings.ToLower(s)
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}
