// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

package fetch

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bep/loadimage"
	"github.com/go-playground/validator/v10"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config configures an S3Fetcher. It works with any S3 compatible service.
type S3Config struct {
	Endpoint       string `yaml:"endpoint" validate:"required"`
	AccessKey      string `yaml:"accessKey" validate:"required"`
	SecretKey      string `yaml:"secretKey" validate:"required"`
	Region         string `yaml:"region"`
	UseSSL         bool   `yaml:"useSSL"`
	ForcePathStyle bool   `yaml:"forcePathStyle"`

	// Timeout for each fetch without a deadline. Defaults to 30 seconds.
	Timeout time.Duration `yaml:"timeout"`
}

// S3Fetcher fetches objects addressed as s3://bucket/key.
type S3Fetcher struct {
	client  *minio.Client
	timeout time.Duration
}

// NewS3Fetcher creates an S3Fetcher from cfg.
// An endpoint with an http or https scheme overrides UseSSL.
func NewS3Fetcher(cfg S3Config) (*S3Fetcher, error) {
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("fetch: incomplete S3 config: %w", err)
	}

	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, err
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: region,
		BucketLookup: func() minio.BucketLookupType {
			if cfg.ForcePathStyle {
				return minio.BucketLookupPath
			}
			return minio.BucketLookupAuto
		}(),
	})
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &S3Fetcher{client: cli, timeout: timeout}, nil
}

// Fetch implements loadimage.Fetcher.
// A positive maxBytes is sent as a byte range.
func (s *S3Fetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (loadimage.Blob, error) {
	bucket, key, err := parseS3URL(rawURL)
	if err != nil {
		return loadimage.Blob{}, err
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		c, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		ctx = c
	}

	var opts minio.GetObjectOptions
	if maxBytes > 0 {
		if err := opts.SetRange(0, maxBytes-1); err != nil {
			return loadimage.Blob{}, err
		}
	}

	obj, err := s.client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return loadimage.Blob{}, err
	}
	defer obj.Close()

	blob, err := readBlob(obj, maxBytes, "")
	if err != nil {
		return loadimage.Blob{}, fmt.Errorf("fetch: s3://%s/%s: %w", bucket, key, err)
	}
	return blob, nil
}

func parseS3URL(rawURL string) (bucket, key string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("fetch: invalid S3 URL %q, expected s3://bucket/key", rawURL)
	}
	return bucket, key, nil
}
