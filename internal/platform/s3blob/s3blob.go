// Package s3blob implements the blob collaborator against S3-compatible
// object storage. Source blobs live in the upload bucket keyed by task id;
// derived blobs live in the results bucket under a deterministic key, so a
// concurrent redelivered write produces the same bytes rather than a conflict.
package s3blob

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/mosaicworks/stylize-api/internal/config"
	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// Store wraps the S3 client and presigner for both pipeline buckets.
type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	cfg     config.StorageConfig
}

// New builds a Store from the shared SDK configuration. A configured endpoint
// switches the client to path-style addressing for S3-compatible services.
func New(awsCfg aws.Config, cfg config.StorageConfig) *Store {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
	}
}

// PresignUpload issues a time-limited credential authorizing one direct PUT
// of the source blob keyed by task id.
func (s *Store) PresignUpload(ctx context.Context, key string) (*lifecycle.UploadCredential, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.UploadBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.UploadTTL))
	if err != nil {
		return nil, fmt.Errorf("%w: presigning upload for %q: %v", store.ErrUnavailable, key, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for name, values := range req.SignedHeader {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	return &lifecycle.UploadCredential{
		URL:     req.URL,
		Method:  req.Method,
		Headers: headers,
	}, nil
}

// GetSource fetches the uploaded source blob by task id.
func (s *Store) GetSource(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.UploadBucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching source blob %q: %v", store.ErrUnavailable, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading source blob %q: %v", store.ErrUnavailable, key, err)
	}
	return data, nil
}

// PutDerived writes the derived blob to the results bucket.
func (s *Store) PutDerived(ctx context.Context, key string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.ResultsBucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/jpeg"),
	})
	if err != nil {
		return fmt.Errorf("%w: writing derived blob %q: %v", store.ErrUnavailable, key, err)
	}
	return nil
}

// PresignResult issues a fresh time-limited retrieval URL for a derived blob.
// Nothing is cached; the URL is recomputed from the key on every call.
func (s *Store) PresignResult(ctx context.Context, key string) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.ResultsBucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.DownloadTTL))
	if err != nil {
		return "", fmt.Errorf("%w: presigning result %q: %v", store.ErrUnavailable, key, err)
	}
	return req.URL, nil
}
