// Package storage uploads changed frames to S3 compatible object storage.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"time"

	"github.com/lewtec/dupclassifier/classifier"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Config struct {
	Endpoint  string // minio:9000 or s3.amazonaws.com
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
}

// ObjectPutter is the subset of *minio.Client the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader is a classifier.Sink that stores each changed frame and records
// the object key on the event.
type Uploader struct {
	client ObjectPutter
	bucket string
	prefix string
	logger *slog.Logger
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("while creating storage client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("while checking bucket '%s': %w", cfg.Bucket, err)
	}
	if !exists {
		err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
		if err != nil {
			return nil, fmt.Errorf("while creating bucket '%s': %w", cfg.Bucket, err)
		}
		if logger != nil {
			logger.Info("bucket created", "bucket", cfg.Bucket)
		}
	}
	return NewWithClient(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func NewWithClient(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With("component", "uploader", "bucket", bucket),
	}
}

// ObjectKey returns where ev is stored:
// prefix/camera/YYYY/MM/DD/<unix nanos>-<hash prefix><ext>
func (u *Uploader) ObjectKey(ev *classifier.ChangeEvent) string {
	detectedAt := ev.DetectedAt.UTC()
	hash := ev.SHA256
	if len(hash) > 12 {
		hash = hash[:12]
	}
	camera := ev.Camera
	if camera == "" {
		camera = "unknown"
	}
	name := strconv.FormatInt(detectedAt.UnixNano(), 10) + "-" + hash + ev.MimeType.Extension()
	return path.Join(u.prefix, camera, detectedAt.Format("2006/01/02"), name)
}

func (u *Uploader) FrameChanged(ctx context.Context, ev *classifier.ChangeEvent) error {
	if len(ev.Data) == 0 {
		return fmt.Errorf("change %s has no frame data", ev.ID)
	}
	key := u.ObjectKey(ev)
	info, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(ev.Data), int64(len(ev.Data)), minio.PutObjectOptions{
		ContentType: string(ev.MimeType),
		UserMetadata: map[string]string{
			"camera":     ev.Camera,
			"sha256":     ev.SHA256,
			"difference": strconv.FormatFloat(ev.Difference, 'f', 4, 64),
		},
	})
	if err != nil {
		return fmt.Errorf("while uploading '%s': %w", key, err)
	}
	ev.ObjectKey = key
	u.logger.Debug("frame uploaded", "key", key, "size", info.Size)
	return nil
}

var _ classifier.Sink = (*Uploader)(nil)
