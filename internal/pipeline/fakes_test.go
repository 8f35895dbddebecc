package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mosaicworks/stylize-api/internal/lifecycle"
	"github.com/mosaicworks/stylize-api/internal/store"
)

// memStore is an in-memory lifecycle.TaskStore with the same conditional
// semantics as the real implementations.
type memStore struct {
	mu      sync.Mutex
	records map[string]*lifecycle.Record

	// failNext makes the next call fail with a transient error.
	failNext bool
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*lifecycle.Record)}
}

func (s *memStore) transientFault() error {
	if s.failNext {
		s.failNext = false
		return fmt.Errorf("%w: injected fault", store.ErrUnavailable)
	}
	return nil
}

func (s *memStore) Create(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientFault(); err != nil {
		return err
	}
	if _, exists := s.records[taskID]; exists {
		return fmt.Errorf("%w: task %s", store.ErrAlreadyExists, taskID)
	}
	now := time.Now().UTC()
	s.records[taskID] = &lifecycle.Record{
		TaskID:    taskID,
		Status:    lifecycle.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (s *memStore) Get(ctx context.Context, taskID string) (*lifecycle.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientFault(); err != nil {
		return nil, err
	}
	rec, exists := s.records[taskID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, taskID)
	}
	copied := *rec
	return &copied, nil
}

func (s *memStore) Transition(ctx context.Context, taskID string, expected []lifecycle.Status, to lifecycle.Status, resultLocation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.transientFault(); err != nil {
		return err
	}
	rec, exists := s.records[taskID]
	if !exists {
		return fmt.Errorf("%w: task %s missing", store.ErrConflict, taskID)
	}
	for _, st := range expected {
		if rec.Status == st {
			rec.Status = to
			if resultLocation != "" {
				rec.ResultLocation = resultLocation
			}
			rec.UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: task %s is %s", store.ErrConflict, taskID, rec.Status)
}

// status is a test helper returning the current status directly.
func (s *memStore) status(taskID string) lifecycle.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[taskID].Status
}

// memBlobs is an in-memory Blobs implementation.
type memBlobs struct {
	mu      sync.Mutex
	uploads map[string][]byte
	results map[string][]byte

	presignUploadErr error
	putDerivedCalls  int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{
		uploads: make(map[string][]byte),
		results: make(map[string][]byte),
	}
}

func (b *memBlobs) PresignUpload(ctx context.Context, key string) (*lifecycle.UploadCredential, error) {
	if b.presignUploadErr != nil {
		return nil, b.presignUploadErr
	}
	return &lifecycle.UploadCredential{
		URL:    "https://blobs.test/uploads/" + key + "?X-Amz-Signature=stub",
		Method: "PUT",
	}, nil
}

func (b *memBlobs) GetSource(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, exists := b.uploads[key]
	if !exists {
		return nil, fmt.Errorf("%w: source blob %s missing", store.ErrUnavailable, key)
	}
	return data, nil
}

func (b *memBlobs) PutDerived(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putDerivedCalls++
	b.results[key] = data
	return nil
}

func (b *memBlobs) PresignResult(ctx context.Context, key string) (string, error) {
	return "https://blobs.test/results/" + key + "?X-Amz-Signature=stub", nil
}

// upload is a test helper simulating a client upload.
func (b *memBlobs) upload(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.uploads[key] = data
}

// memQueue records handoff messages.
type memQueue struct {
	mu       sync.Mutex
	messages []lifecycle.HandoffMessage
	sendErr  error
}

func (q *memQueue) SendHandoff(ctx context.Context, msg lifecycle.HandoffMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return q.sendErr
	}
	q.messages = append(q.messages, msg)
	return nil
}

func (q *memQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

// stubCapability derives bytes deterministically, or fails on demand.
type stubCapability struct {
	err   error
	calls int
}

func (c *stubCapability) Transform(ctx context.Context, src []byte) ([]byte, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return append([]byte("derived:"), src...), nil
}
