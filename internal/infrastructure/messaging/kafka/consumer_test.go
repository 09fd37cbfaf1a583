package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
)

type fakeReader struct {
	messages chan kafka.Message

	mu        sync.Mutex
	committed []kafka.Message
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	ch := make(chan kafka.Message, len(msgs))
	for _, m := range msgs {
		ch <- m
	}
	return &fakeReader{messages: ch}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.messages:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func jobMessage(t *testing.T, runID uuid.UUID) kafka.Message {
	t.Helper()
	payload, err := ScanJobMessage{RunID: runID, SubmittedAt: time.Now().UTC()}.Encode()
	require.NoError(t, err)
	return kafka.Message{Key: []byte(runID.String()), Value: payload}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	runID := uuid.New()
	reader := newFakeReader(jobMessage(t, runID))

	var handled atomic.Int64
	var gotRun atomic.Value
	consumer := newConsumerWithReader(reader, func(_ context.Context, msg ScanJobMessage) error {
		handled.Add(1)
		gotRun.Store(msg.RunID)
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	waitFor(t, func() bool { return reader.committedCount() == 1 })
	assert.EqualValues(t, 1, handled.Load())
	assert.Equal(t, runID, gotRun.Load())
}

func TestConsumer_RetriesThenSucceeds(t *testing.T) {
	reader := newFakeReader(jobMessage(t, uuid.New()))

	var attempts atomic.Int64
	consumer := newConsumerWithReader(reader, func(context.Context, ScanJobMessage) error {
		if attempts.Add(1) < 3 {
			return assert.AnError
		}
		return nil
	}, logging.NewNopLogger())
	consumer.backoff = time.Millisecond

	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	waitFor(t, func() bool { return reader.committedCount() == 1 })
	assert.EqualValues(t, 3, attempts.Load())
}

func TestConsumer_SkipsMalformedMessage(t *testing.T) {
	reader := newFakeReader(kafka.Message{Value: []byte("not a job")})

	var handled atomic.Int64
	consumer := newConsumerWithReader(reader, func(context.Context, ScanJobMessage) error {
		handled.Add(1)
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	// Malformed messages are committed so the group does not wedge.
	waitFor(t, func() bool { return reader.committedCount() == 1 })
	assert.EqualValues(t, 0, handled.Load())
}

func TestConsumer_DoubleStartRejected(t *testing.T) {
	consumer := newConsumerWithReader(newFakeReader(), func(context.Context, ScanJobMessage) error {
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Start(context.Background()))
	assert.Equal(t, ErrAlreadyRunning, consumer.Start(context.Background()))
	require.NoError(t, consumer.Stop())
}

func TestConsumer_StopClosesReader(t *testing.T) {
	reader := newFakeReader()
	consumer := newConsumerWithReader(reader, func(context.Context, ScanJobMessage) error {
		return nil
	}, logging.NewNopLogger())

	require.NoError(t, consumer.Start(context.Background()))
	require.NoError(t, consumer.Stop())

	reader.mu.Lock()
	closed := reader.closed
	reader.mu.Unlock()
	assert.True(t, closed)

	// Stop is idempotent.
	assert.NoError(t, consumer.Stop())
}
