package kafka

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

type fakeWriter struct {
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducer_Enqueue(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w, logging.NewNopLogger())

	runID := uuid.New()
	require.NoError(t, p.Enqueue(context.Background(), runID))
	require.Len(t, w.messages, 1)

	assert.Equal(t, runID.String(), string(w.messages[0].Key))

	msg, err := DecodeScanJobMessage(w.messages[0].Value)
	require.NoError(t, err)
	assert.Equal(t, runID, msg.RunID)
	assert.False(t, msg.SubmittedAt.IsZero())
}

func TestProducer_EnqueueWriteFailure(t *testing.T) {
	w := &fakeWriter{writeErr: assert.AnError}
	p := newProducerWithWriter(w, logging.NewNopLogger())

	err := p.Enqueue(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeMessagingError))
}

func TestProducer_CloseRejectsFurtherWrites(t *testing.T) {
	w := &fakeWriter{}
	p := newProducerWithWriter(w, logging.NewNopLogger())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Equal(t, ErrProducerClosed, p.Enqueue(context.Background(), uuid.New()))

	// Idempotent.
	assert.NoError(t, p.Close())
}
