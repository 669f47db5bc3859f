package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"cloud.google.com/go/storage"

	"github.com/mixelka/mailpager/pkg/models"
)

// GCSStore keeps the accounts YAML document in a Cloud Storage object
type GCSStore struct {
	client *storage.Client
	bucket string
	object string
	logger *slog.Logger
}

// NewGCSStore creates a Cloud Storage client using Application Default Credentials
func NewGCSStore(ctx context.Context, bucket, object string, logger *slog.Logger) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		object: object,
		logger: logger.With("component", "store", "backend", "gcs"),
	}, nil
}

// Load reads all accounts from the object
func (s *GCSStore) Load(ctx context.Context) ([]*models.Account, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: gs://%s/%s", ErrNotFound, s.bucket, s.object)
	}
	if err != nil {
		return nil, fmt.Errorf("open storage reader: %w", err)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			s.logger.Warn("Failed to close storage reader", "error", closeErr)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read from storage: %w", err)
	}

	accounts, err := decodeAccounts(data)
	if err != nil {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, s.object, err)
	}

	s.logger.Debug("accounts loaded", "bucket", s.bucket, "object", s.object, "count", len(accounts))
	return accounts, nil
}

// Save replaces the object with the current accounts
func (s *GCSStore) Save(ctx context.Context, accounts []*models.Account) error {
	data, err := encodeAccounts(accounts)
	if err != nil {
		return err
	}

	w := s.client.Bucket(s.bucket).Object(s.object).NewWriter(ctx)
	w.ContentType = "application/yaml"
	if _, writeErr := w.Write(data); writeErr != nil {
		if closeErr := w.Close(); closeErr != nil {
			s.logger.Warn("Failed to close writer after error", "error", closeErr)
		}
		return fmt.Errorf("write to storage: %w", writeErr)
	}
	if closeErr := w.Close(); closeErr != nil {
		return fmt.Errorf("close storage writer: %w", closeErr)
	}

	s.logger.Debug("accounts saved", "bucket", s.bucket, "object", s.object, "count", len(accounts))
	return nil
}

// Close closes the storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
