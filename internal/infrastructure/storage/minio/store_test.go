package minio

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

type fakeObjectClient struct {
	objects map[string][]byte
	failPut bool
}

func newFakeObjectClient() *fakeObjectClient {
	return &fakeObjectClient{objects: make(map[string][]byte)}
}

func (f *fakeObjectClient) PutObject(_ context.Context, key string, payload []byte, _ string) error {
	if f.failPut {
		return assertError("put rejected")
	}
	f.objects[key] = payload
	return nil
}

func (f *fakeObjectClient) GetObject(_ context.Context, key string) ([]byte, bool, error) {
	payload, ok := f.objects[key]
	if !ok {
		return nil, true, nil
	}
	return payload, false, nil
}

func (f *fakeObjectClient) RemoveObject(_ context.Context, key string) error {
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectClient) ListKeys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

type assertError string

func (e assertError) Error() string { return string(e) }

func newTestStore(fake *fakeObjectClient) *MatrixStore {
	return newMatrixStore(fake, logging.NewNopLogger())
}

func TestMatrixStore_PutGet(t *testing.T) {
	fake := newFakeObjectClient()
	store := newTestStore(fake)
	ctx := context.Background()

	payload := []byte("1.0,2.0\n3.0,4.0\n")
	require.NoError(t, store.Put(ctx, "datasets/x/training.csv", payload))

	got, err := store.Get(ctx, "datasets/x/training.csv")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestMatrixStore_GetMissing(t *testing.T) {
	store := newTestStore(newFakeObjectClient())

	_, err := store.Get(context.Background(), "datasets/missing/training.csv")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestMatrixStore_PutFailureMapsToStorageError(t *testing.T) {
	fake := newFakeObjectClient()
	fake.failPut = true
	store := newTestStore(fake)

	err := store.Put(context.Background(), "k", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}

func TestMatrixStore_DeletePrefix(t *testing.T) {
	fake := newFakeObjectClient()
	store := newTestStore(fake)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "datasets/a/training.csv", []byte("1")))
	require.NoError(t, store.Put(ctx, "datasets/a/query.csv", []byte("2")))
	require.NoError(t, store.Put(ctx, "datasets/b/training.csv", []byte("3")))

	require.NoError(t, store.DeletePrefix(ctx, "datasets/a/"))

	_, err := store.Get(ctx, "datasets/a/training.csv")
	assert.True(t, errors.IsNotFound(err))
	_, err = store.Get(ctx, "datasets/b/training.csv")
	assert.NoError(t, err)
}
