package minio

import (
	"context"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

// objectClient is the subset of Client the store needs; narrowed so tests
// can substitute an in-memory implementation.
type objectClient interface {
	PutObject(ctx context.Context, key string, payload []byte, contentType string) error
	GetObject(ctx context.Context, key string) (payload []byte, notFound bool, err error)
	RemoveObject(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

const csvContentType = "text/csv"

// MatrixStore implements dataset.MatrixStore over the object store.
type MatrixStore struct {
	client objectClient
	logger logging.Logger
}

// NewMatrixStore constructs a store backed by the given client.
func NewMatrixStore(client *Client, logger logging.Logger) *MatrixStore {
	return newMatrixStore(client, logger)
}

func newMatrixStore(client objectClient, logger logging.Logger) *MatrixStore {
	return &MatrixStore{client: client, logger: logger.Named("matrix_store")}
}

// Put stores a matrix payload.
func (s *MatrixStore) Put(ctx context.Context, key string, payload []byte) error {
	if err := s.client.PutObject(ctx, key, payload, csvContentType); err != nil {
		s.logger.Error("matrix upload failed", logging.String("key", key), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to store matrix")
	}
	return nil
}

// Get loads a matrix payload.
func (s *MatrixStore) Get(ctx context.Context, key string) ([]byte, error) {
	payload, notFound, err := s.client.GetObject(ctx, key)
	if notFound {
		return nil, errors.Newf(errors.ErrCodeNotFound, "matrix object %s not found", key)
	}
	if err != nil {
		s.logger.Error("matrix download failed", logging.String("key", key), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeStorageError, "failed to load matrix")
	}
	return payload, nil
}

// Delete removes a single matrix object.
func (s *MatrixStore) Delete(ctx context.Context, key string) error {
	if err := s.client.RemoveObject(ctx, key); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete matrix")
	}
	return nil
}

// DeletePrefix removes every object under prefix. Used when a dataset is
// deleted so no orphaned matrices remain.
func (s *MatrixStore) DeletePrefix(ctx context.Context, prefix string) error {
	keys, err := s.client.ListKeys(ctx, prefix)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "failed to list matrices for deletion")
	}
	for _, key := range keys {
		if err := s.client.RemoveObject(ctx, key); err != nil {
			return errors.Wrap(err, errors.ErrCodeStorageError, "failed to delete matrix "+key)
		}
	}
	return nil
}
