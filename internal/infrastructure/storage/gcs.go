package storage

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/pkg/retry"
)

// GCSStore uploads receipts to a Google Cloud Storage bucket.
type GCSStore struct {
	client  *storage.Client
	bucket  string
	prefix  string
	retrier *retry.Retrier
}

var _ receipt.Store = (*GCSStore)(nil)

// NewGCSStore creates a store using application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}
	return &GCSStore{
		client:  client,
		bucket:  bucket,
		prefix:  strings.Trim(prefix, "/"),
		retrier: retry.UploadRetrier(),
	}, nil
}

// Put uploads the PDF and returns a gs:// location. Transient upload
// failures are retried.
func (s *GCSStore) Put(ctx context.Context, key string, pdf []byte) (string, error) {
	name := key
	if s.prefix != "" {
		name = s.prefix + "/" + key
	}

	err := s.retrier.Do(ctx, func(ctx context.Context) error {
		w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
		w.ContentType = "application/pdf"
		if _, err := w.Write(pdf); err != nil {
			_ = w.Close()
			return err
		}
		return w.Close()
	})
	if err != nil {
		return "", fmt.Errorf("gcs: upload %s: %w", name, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, name), nil
}

// Close releases the client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
