package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type MessageProcessor interface {
	Process(ctx context.Context, msg Message) error
}

// ErrUnacknowledged stops the worker when a message still fails after every retry. The message
// and everything after it stay uncommitted and are redelivered to the next consumer instance.
var ErrUnacknowledged = errors.New("message left unacknowledged")

type ConsumerWorker struct {
	logger      *slog.Logger
	consumer    Consumer
	processor   MessageProcessor
	interval    time.Duration
	batchSize   int
	maxAttempts int
	baseDelay   time.Duration
}

type ConsumerWorkerConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
	BaseDelay   time.Duration
}

func NewConsumerWorker(logger *slog.Logger, consumer Consumer, processor MessageProcessor, cfg ConsumerWorkerConfig) *ConsumerWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	return &ConsumerWorker{
		logger:      logger,
		consumer:    consumer,
		processor:   processor,
		interval:    cfg.Interval,
		batchSize:   cfg.BatchSize,
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
	}
}

func (w *ConsumerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.ErrorContext(ctx, "consumer iteration failed",
				"module", "events.consumer_worker",
				"layer", "adapter",
				"operation", "process_once",
				"outcome", "failure",
				"error", err,
			)
			if errors.Is(err, ErrUnacknowledged) {
				return err
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *ConsumerWorker) processOnce(ctx context.Context) error {
	msgs, err := w.consumer.Poll(ctx, w.batchSize)
	if err != nil && len(msgs) == 0 {
		return err
	}
	done := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		if perr := w.processWithRetry(ctx, msg); perr != nil {
			if cerr := w.consumer.Commit(ctx, done...); cerr != nil {
				return errors.Join(perr, cerr)
			}
			return perr
		}
		done = append(done, msg)
	}
	if cerr := w.consumer.Commit(ctx, done...); cerr != nil {
		return cerr
	}
	return err
}

func (w *ConsumerWorker) processWithRetry(ctx context.Context, msg Message) error {
	delay := w.baseDelay
	var lastErr error
	for attempt := 1; attempt <= w.maxAttempts; attempt++ {
		err := w.processor.Process(ctx, msg)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPoisonMessage) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		w.logger.WarnContext(ctx, "inbound message failed",
			"module", "events.consumer_worker",
			"layer", "adapter",
			"operation", "process_message",
			"outcome", "retry",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"attempt", attempt,
			"error", err,
		)
		if attempt == w.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %s@%d: %v", ErrUnacknowledged, msg.Topic, msg.Offset, lastErr)
}
