package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"motorent/internal/app/policies"
)

// defaultRegion avoids a bucket-location lookup when presigning.
const defaultRegion = "us-east-1"

const DefaultLinkTTL = 15 * time.Minute

type Options struct {
	Endpoint       string
	PublicEndpoint string
	UseSSL         bool
	AccessKey      string
	SecretKey      string
	Bucket         string
	LinkTTL        time.Duration
}

// ReportStore keeps exports in a private bucket and hands out presigned links.
type ReportStore struct {
	bucket         string
	linkTTL        time.Duration
	client         *minio.Client
	signer         *minio.Client
	logger         *slog.Logger
	bucketInitOnce sync.Once
	bucketInitErr  error
}

func NewReportStore(opts Options, logger *slog.Logger) (*ReportStore, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	client, err := newMinio(endpoint, opts)
	if err != nil {
		return nil, err
	}
	signer := client
	if public := strings.TrimSpace(opts.PublicEndpoint); public != "" && public != endpoint {
		if signer, err = newMinio(public, opts); err != nil {
			return nil, err
		}
	}
	ttl := opts.LinkTTL
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	return &ReportStore{bucket: bucket, linkTTL: ttl, client: client, signer: signer, logger: logger}, nil
}

func newMinio(endpoint string, opts Options) (*minio.Client, error) {
	c, err := minio.New(parseEndpoint(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
		Region: defaultRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: create client: %w", err)
	}
	return c, nil
}

func (s *ReportStore) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errors.New("s3: reader is required")
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	if key == "" {
		return "", errors.New("s3: object key is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.client.PutObject(ctx, s.bucket, key, reader, -1, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("s3: put object: %w", err)
	}
	link, err := s.signer.PresignedGetObject(ctx, s.bucket, key, s.linkTTL, url.Values{})
	if err != nil {
		return "", fmt.Errorf("s3: presign: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("report uploaded", "bucket", s.bucket, "key", key, "expires_in", s.linkTTL)
	}
	return link.String(), nil
}

// Ping reports whether the bucket is reachable.
func (s *ReportStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}

func (s *ReportStore) ensureBucket(ctx context.Context) error {
	s.bucketInitOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.bucketInitErr = fmt.Errorf("s3: check bucket: %w", err)
			return
		}
		if exists {
			return
		}
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: defaultRegion}); err != nil {
			s.bucketInitErr = fmt.Errorf("s3: create bucket: %w", err)
		}
	})
	return s.bucketInitErr
}

func parseEndpoint(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

// NoopReportStore fails fast when S3 is unavailable.
type NoopReportStore struct{}

func (NoopReportStore) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", errors.New("s3 report store is not configured")
}

var (
	_ policies.ReportStore = (*ReportStore)(nil)
	_ policies.ReportStore = NoopReportStore{}
)
