package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/qsarlab/adscan/internal/config"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/pkg/errors"
)

var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer is already running")

// JobHandler processes one scan job. A returned error triggers bounded
// retries before the message is skipped; permanent failures are the
// handler's responsibility to record (the run row carries the failure).
type JobHandler func(ctx context.Context, msg ScanJobMessage) error

// readerInterface abstracts kafka.Reader for testing.
type readerInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer pulls scan jobs from the scan-jobs topic and dispatches them to a
// handler. Messages are committed only after handling so a crashed worker
// replays its in-flight job.
type Consumer struct {
	reader     readerInterface
	handler    JobHandler
	logger     logging.Logger
	maxRetries int
	backoff    time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewConsumer creates a consumer in the configured consumer group.
func NewConsumer(cfg config.KafkaConfig, handler JobHandler, log logging.Logger) *Consumer {
	commitInterval := cfg.CommitInterval
	if commitInterval == 0 {
		commitInterval = time.Second
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.ScanJobsTopic,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		CommitInterval: commitInterval,
		StartOffset:    kafka.FirstOffset,
	})
	return newConsumerWithReader(reader, handler, log)
}

func newConsumerWithReader(reader readerInterface, handler JobHandler, log logging.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		handler:    handler,
		logger:     log.Named("kafka_consumer"),
		maxRetries: 3,
		backoff:    time.Second,
	}
}

// Start launches the consume loop. It returns immediately; use Stop for a
// graceful shutdown.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(runCtx)
	}()

	c.logger.Info("consumer started")
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for {
		raw, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			continue
		}

		c.process(ctx, raw)

		if err := c.reader.CommitMessages(ctx, raw); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.Err(err))
		}
	}
}

// process decodes and handles one message with bounded retries. Undecodable
// messages are skipped outright; they can never succeed.
func (c *Consumer) process(ctx context.Context, raw kafka.Message) {
	msg, err := DecodeScanJobMessage(raw.Value)
	if err != nil {
		c.logger.Error("skipping malformed scan job message",
			logging.Int64("offset", raw.Offset), logging.Err(err))
		return
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		err = c.handler(ctx, msg)
		if err == nil {
			return
		}
		c.logger.Warn("scan job handling failed",
			logging.String("run_id", msg.RunID.String()),
			logging.Int("attempt", attempt+1),
			logging.Err(err),
		)
	}

	c.logger.Error("scan job abandoned after retries",
		logging.String("run_id", msg.RunID.String()), logging.Err(err))
}

// Stop cancels the consume loop and closes the reader.
func (c *Consumer) Stop() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("consumer stopped")
	return err
}
