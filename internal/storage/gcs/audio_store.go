// Package gcs reads audio objects from Google Cloud Storage for transcription.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// DefaultMaxBytes caps object downloads when no limit is configured.
const DefaultMaxBytes = 100 << 20

// ErrTooLarge is returned for objects above the configured size cap.
var ErrTooLarge = errors.New("object exceeds size limit")

// Config captures the parameters for reading audio objects.
//   - Bucket: when set, only objects in this bucket may be read.
//   - MaxBytes: download cap (default 100 MiB).
type Config struct {
	Bucket   string
	MaxBytes int64
}

// AudioStore implements studio.ObjectReader over a GCS client.
type AudioStore struct {
	client *storage.Client
	cfg    Config
}

// New creates a GCS-backed audio reader.
func New(client *storage.Client, cfg Config) (*AudioStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &AudioStore{client: client, cfg: cfg}, nil
}

// ReadObject downloads a gs://bucket/path object and returns its bytes and
// stored content type.
func (s *AudioStore) ReadObject(ctx context.Context, uri string) ([]byte, string, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, "", err
	}
	if s.cfg.Bucket != "" && bucket != s.cfg.Bucket {
		return nil, "", fmt.Errorf("bucket %q is not allowed", bucket)
	}
	reader, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("open object: %w", err)
	}
	defer func() { _ = reader.Close() }()

	if reader.Attrs.Size > s.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: %d bytes", ErrTooLarge, reader.Attrs.Size)
	}
	data, err := io.ReadAll(io.LimitReader(reader, s.cfg.MaxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read object: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxBytes {
		return nil, "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, s.cfg.MaxBytes)
	}
	return data, reader.Attrs.ContentType, nil
}

// Close releases the underlying client.
func (s *AudioStore) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close storage client: %w", err)
	}
	return nil
}

// ParseURI splits gs://bucket/path into its bucket and object name.
func ParseURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "gs://")
	if !ok {
		return "", "", fmt.Errorf("object uri %q must start with gs://", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("object uri %q must name a bucket and an object", uri)
	}
	return bucket, object, nil
}
