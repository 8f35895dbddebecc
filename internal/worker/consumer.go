// Package worker runs pools of queue consumers. Each consumed message is one
// short-lived stage invocation: a nil handler result acknowledges the
// message, any error leaves it for redelivery.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mosaicworks/stylize-api/internal/platform/logger"
	"github.com/mosaicworks/stylize-api/internal/platform/sqsqueue"
)

// Source is the receive side of a queue.
type Source interface {
	Receive(ctx context.Context) ([]sqsqueue.Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Handler processes one message body. Returning an error requests
// redelivery; it must therefore be safe to run the same body again.
type Handler func(ctx context.Context, body string) error

// Consumer feeds messages from one queue into a pool of workers.
type Consumer struct {
	name        string
	source      Source
	handler     Handler
	workerCount int
	logger      *slog.Logger

	// receiveBackoff is the pause after a failed receive before polling
	// again.
	receiveBackoff time.Duration
}

// NewConsumer creates a Consumer with the given pool size.
func NewConsumer(name string, source Source, handler Handler, workerCount int, log *slog.Logger) *Consumer {
	if workerCount <= 0 {
		workerCount = 1
	}
	return &Consumer{
		name:           name,
		source:         source,
		handler:        handler,
		workerCount:    workerCount,
		logger:         log.With("consumer", name),
		receiveBackoff: 2 * time.Second,
	}
}

// Run receives and processes messages until the context is cancelled. It
// blocks; run each consumer in its own goroutine.
func (c *Consumer) Run(ctx context.Context) {
	msgs := make(chan sqsqueue.Message)

	var wg sync.WaitGroup
	for i := 0; i < c.workerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.worker(ctx, id, msgs)
		}(i)
	}

	c.logger.Info("consumer started", "workers", c.workerCount)

	for {
		if ctx.Err() != nil {
			break
		}

		batch, err := c.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			c.logger.Error("receive failed", "error", err)
			select {
			case <-time.After(c.receiveBackoff):
			case <-ctx.Done():
			}
			continue
		}

		for _, msg := range batch {
			select {
			case msgs <- msg:
			case <-ctx.Done():
			}
		}
	}

	close(msgs)
	wg.Wait()
	c.logger.Info("consumer stopped")
}

func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan sqsqueue.Message) {
	log := c.logger.With("worker_id", id)

	for msg := range msgs {
		mctx := logger.WithLogger(ctx, log)

		if err := c.handler(mctx, msg.Body); err != nil {
			// Leave the message in place; the queue redelivers it after the
			// visibility timeout.
			log.Warn("message handling failed, leaving for redelivery", "error", err)
			continue
		}

		if err := c.source.Delete(mctx, msg.ReceiptHandle); err != nil {
			// The work itself completed; the redelivered duplicate converges
			// in the stage's idempotent path.
			log.Warn("failed to acknowledge message", "error", err)
		}
	}
}
