package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore keeps objects in a Google Cloud Storage bucket.
type GCSStore struct {
	client     *storage.Client
	bucket     string
	publicBase string
}

// NewGCSStore opens a client with explicit credentials JSON when provided and
// application default credentials otherwise.
func NewGCSStore(ctx context.Context, bucket, credentialsJSON, publicBase string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: GCS_BUCKET is required", ErrNotConfigured)
	}
	var opts []option.ClientOption
	if strings.TrimSpace(credentialsJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credentialsJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("platform/blob: gcs client: %w", err)
	}
	if publicBase == "" {
		publicBase = "https://storage.googleapis.com/" + bucket
	}
	return &GCSStore{client: client, bucket: bucket, publicBase: strings.TrimRight(publicBase, "/")}, nil
}

// Put uploads data as ref.
func (s *GCSStore) Put(ctx context.Context, ref string, data []byte, contentType string) error {
	wc := s.client.Bucket(s.bucket).Object(ref).NewWriter(ctx)
	wc.ContentType = contentType
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("platform/blob: upload %s: %w", ref, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("platform/blob: close writer %s: %w", ref, err)
	}
	return nil
}

// Delete removes ref from the bucket.
func (s *GCSStore) Delete(ctx context.Context, ref string) error {
	err := s.client.Bucket(s.bucket).Object(ref).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("platform/blob: delete %s: %w", ref, err)
	}
	return nil
}

// URL returns the public address of ref.
func (s *GCSStore) URL(ref string) string {
	return s.publicBase + "/" + ref
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
