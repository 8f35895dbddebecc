package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mosaicworks/stylize-api/internal/platform/sqsqueue"
)

// fakeSource delivers queued batches and records acknowledgements.
type fakeSource struct {
	mu      sync.Mutex
	batches [][]sqsqueue.Message
	deleted []string
}

func (f *fakeSource) Receive(ctx context.Context) ([]sqsqueue.Message, error) {
	f.mu.Lock()
	if len(f.batches) == 0 {
		f.mu.Unlock()
		// Simulate long polling on an empty queue.
		select {
		case <-ctx.Done():
		case <-time.After(10 * time.Millisecond):
		}
		return nil, ctx.Err()
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	f.mu.Unlock()
	return batch, nil
}

func (f *fakeSource) Delete(ctx context.Context, receiptHandle string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, receiptHandle)
	return nil
}

func (f *fakeSource) deletedHandles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestConsumerAcknowledgesHandledMessages(t *testing.T) {
	source := &fakeSource{batches: [][]sqsqueue.Message{{
		{Body: "a", ReceiptHandle: "r1"},
		{Body: "b", ReceiptHandle: "r2"},
	}}}

	var mu sync.Mutex
	var handled []string
	handler := func(ctx context.Context, body string) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, body)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer("test", source, handler, 2, testLogger())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(source.deletedHandles()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b"}, handled)
	assert.ElementsMatch(t, []string{"r1", "r2"}, source.deletedHandles())
}

func TestConsumerLeavesFailedMessages(t *testing.T) {
	source := &fakeSource{batches: [][]sqsqueue.Message{{
		{Body: "bad", ReceiptHandle: "r1"},
		{Body: "good", ReceiptHandle: "r2"},
	}}}

	handler := func(ctx context.Context, body string) error {
		if body == "bad" {
			return errors.New("transient failure")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := NewConsumer("test", source, handler, 1, testLogger())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(source.deletedHandles()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	// Only the handled message was acknowledged; the failed one stays for
	// redelivery.
	assert.Equal(t, []string{"r2"}, source.deletedHandles())
}

func TestConsumerDefaultsInvalidWorkerCount(t *testing.T) {
	c := NewConsumer("test", &fakeSource{}, func(context.Context, string) error { return nil }, 0, testLogger())
	assert.Equal(t, 1, c.workerCount)
}
