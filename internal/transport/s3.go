package transport

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/JonMunkholm/sheetflow/internal/config"
	"github.com/JonMunkholm/sheetflow/internal/logging"
)

const contentType = "text/csv; charset=utf-8"

// objectAPI is the part of *minio.Client the uploader uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// S3Uploader sends files to an S3-compatible bucket. Each file replaces
// the object of the same name under the configured prefix.
type S3Uploader struct {
	client  objectAPI
	bucket  string
	region  string
	prefix  string
	timeout time.Duration

	initOnce sync.Once
	initErr  error
}

// NewS3Uploader creates an uploader from transport settings.
func NewS3Uploader(cfg config.TransportConfig) (*S3Uploader, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return newS3Uploader(client, bucket, region, cfg.Prefix, cfg.Timeout), nil
}

func newS3Uploader(client objectAPI, bucket, region, prefix string, timeout time.Duration) *S3Uploader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		region:  region,
		prefix:  strings.Trim(strings.TrimSpace(prefix), "/"),
		timeout: timeout,
	}
}

func (u *S3Uploader) ensureBucket(ctx context.Context) error {
	u.initOnce.Do(func() {
		exists, err := u.client.BucketExists(ctx, u.bucket)
		if err != nil {
			u.initErr = err
			return
		}
		if exists {
			return
		}
		u.initErr = u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{Region: u.region})
	})
	return u.initErr
}

// Upload first removes the remote copy of every file about to be sent,
// then sends them. Per-file failures are collected in the result; the
// error is reserved for failures that stop the whole upload.
func (u *S3Uploader) Upload(ctx context.Context, dir string) (Result, error) {
	names, err := localFiles(dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{Uploaded: []string{}}
	if len(names) == 0 {
		return res, nil
	}
	if err := u.ensureBucket(ctx); err != nil {
		return res, fmt.Errorf("ensure bucket: %w", err)
	}

	logger := logging.WithFields(ctx, "bucket", u.bucket, "prefix", u.prefix)
	logger.Info("upload started", "files", len(names))

	failed := make(map[string]bool)
	for _, name := range names {
		if err := u.remove(ctx, name); err != nil {
			logger.Warn("remove previous object failed", "file", name, "error", err)
			res.Failed = append(res.Failed, Failure{File: name, Error: err.Error()})
			failed[name] = true
		}
	}

	for _, name := range names {
		if failed[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		n, err := u.put(ctx, filepath.Join(dir, name), name)
		if err != nil {
			logger.Error("upload failed", "file", name, "error", err)
			res.Failed = append(res.Failed, Failure{File: name, Error: err.Error()})
			continue
		}
		logger.Info("file uploaded", "file", name, "object", u.objectName(name), "bytes", n)
		res.Uploaded = append(res.Uploaded, name)
	}

	logger.Info("upload completed", "uploaded", len(res.Uploaded), "failed", len(res.Failed))
	return res, nil
}

func (u *S3Uploader) remove(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	err := u.client.RemoveObject(ctx, u.bucket, u.objectName(name), minio.RemoveObjectOptions{})
	if err != nil && minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return nil
	}
	return err
}

func (u *S3Uploader) put(ctx context.Context, localPath, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	f, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	_, err = u.client.PutObject(ctx, u.bucket, u.objectName(name), f, info.Size(), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (u *S3Uploader) objectName(name string) string {
	if u.prefix == "" {
		return name
	}
	return path.Join(u.prefix, name)
}
