package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

var ErrProducerClosed = errors.New(errors.ErrCodeMessagingError, "producer is closed")

// writerInterface abstracts kafka.Writer for testing.
type writerInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes scan jobs to the scan-jobs topic. It implements
// scan.JobQueue.
type Producer struct {
	writer writerInterface
	logger logging.Logger
	mu     sync.RWMutex
	closed bool
}

// NewProducer creates a producer for the configured scan-jobs topic. Writes
// require acknowledgement from all in-sync replicas so an accepted job is
// never lost to a broker failover.
func NewProducer(cfg config.KafkaConfig, log logging.Logger) *Producer {
	retries := cfg.ProducerRetries
	if retries == 0 {
		retries = 3
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout == 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.ScanJobsTopic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  retries,
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return &Producer{writer: writer, logger: log.Named("kafka_producer")}
}

func newProducerWithWriter(w writerInterface, log logging.Logger) *Producer {
	return &Producer{writer: w, logger: log}
}

// Enqueue publishes a scan job keyed by run ID, so retries of the same run
// land on the same partition.
func (p *Producer) Enqueue(ctx context.Context, runID uuid.UUID) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrProducerClosed
	}

	msg := ScanJobMessage{RunID: runID, SubmittedAt: time.Now().UTC()}
	payload, err := msg.Encode()
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(runID.String()),
		Value: payload,
	}); err != nil {
		p.logger.Error("failed to enqueue scan job",
			logging.String("run_id", runID.String()), logging.Err(err))
		return errors.Wrap(err, errors.ErrCodeMessagingError, "failed to enqueue scan job")
	}

	p.logger.Debug("scan job enqueued", logging.String("run_id", runID.String()))
	return nil
}

// Close flushes and closes the underlying writer. Safe to call more than
// once.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
