package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config describes the S3 endpoint and bucket media is written to.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	// PublicURL is the base clients fetch objects from. When empty it is
	// derived from Endpoint and Bucket.
	PublicURL string
	// Region skips the bucket location lookup when set.
	Region string
}

// MinioStore is a BlobStore backed by minio-go.
type MinioStore struct {
	client *minio.Client
	bucket string
	public string
}

// NewMinioStore builds the client. No request is made until first use.
func NewMinioStore(cfg Config) (*MinioStore, error) {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "http://"), "https://")
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	cl, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	public := strings.TrimRight(cfg.PublicURL, "/")
	if public == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		public = fmt.Sprintf("%s://%s/%s", scheme, endpoint, cfg.Bucket)
	}
	return &MinioStore{client: cl, bucket: cfg.Bucket, public: public}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (s *MinioStore) Upload(ctx context.Context, data []byte, contentType string) (string, error) {
	return s.put(ctx, "images", bytes.NewReader(data), int64(len(data)), contentType)
}

// UploadVideo streams r to the bucket. size may be -1 when unknown, in which
// case minio-go falls back to a multipart upload.
func (s *MinioStore) UploadVideo(ctx context.Context, r io.Reader, size int64, contentType string) (string, error) {
	return s.put(ctx, "videos", r, size, contentType)
}

func (s *MinioStore) put(ctx context.Context, prefix string, r io.Reader, size int64, contentType string) (string, error) {
	key := prefix + "/" + uuid.NewString() + extensionFor(contentType)
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.public + "/" + key, nil
}

// Delete removes the object behind a URL produced by this store.
func (s *MinioStore) Delete(ctx context.Context, rawURL string) error {
	key, err := s.KeyFromURL(rawURL)
	if err != nil {
		return err
	}
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

// KeyFromURL derives the object key from a public URL.
func (s *MinioStore) KeyFromURL(rawURL string) (string, error) {
	if key, ok := strings.CutPrefix(rawURL, s.public+"/"); ok && key != "" {
		return key, nil
	}
	// URLs written before a PUBLIC_URL change still carry /<bucket>/<key>
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrForeignURL, err)
	}
	if key, ok := strings.CutPrefix(u.Path, "/"+s.bucket+"/"); ok && key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s", ErrForeignURL, rawURL)
}
