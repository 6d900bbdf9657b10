// Package memory implements the ephemeral job backend: an in-process record
// map plus a FIFO handoff channel drained by a single worker. All state is
// lost on restart, which is the accepted contract for single-node use.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vgrab/vgrab/internal/domain"
)

// ErrQueueFull is returned when the handoff channel cannot accept another
// job without blocking the submitting request.
var ErrQueueFull = errors.New("job queue is full")

// DefaultQueueCapacity bounds the handoff channel when no capacity is given.
const DefaultQueueCapacity = 256

// Store implements domain.JobStore in process memory.
type Store struct {
	mu    sync.RWMutex
	jobs  map[string]*domain.Job
	queue chan string
}

// New creates an empty store with a handoff channel of the given capacity.
func New(queueCapacity int) *Store {
	if queueCapacity <= 0 {
		queueCapacity = DefaultQueueCapacity
	}
	return &Store{
		jobs:  make(map[string]*domain.Job),
		queue: make(chan string, queueCapacity),
	}
}

// Queue exposes the handoff channel for the worker loop.
func (s *Store) Queue() <-chan string {
	return s.queue
}

// Enqueue writes the initial record and pushes the id onto the handoff
// channel without blocking.
func (s *Store) Enqueue(ctx context.Context, payload domain.Payload) (string, error) {
	id := uuid.NewString()
	job := domain.NewJob(id, payload)

	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	select {
	case s.queue <- id:
		return id, nil
	default:
		s.mu.Lock()
		delete(s.jobs, id)
		s.mu.Unlock()
		return "", ErrQueueFull
	}
}

// Get returns a snapshot copy, or (nil, nil) for unknown ids.
func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.Clone(), nil
}

// Set merges the update into the stored record, creating it if absent.
func (s *Store) Set(ctx context.Context, id string, u domain.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		job = &domain.Job{ID: id, CreatedAt: time.Now()}
		s.jobs[id] = job
	}
	job.Apply(u)
	job.UpdatedAt = time.Now()
	return nil
}

// Close releases the handoff channel so a draining worker loop exits.
func (s *Store) Close() error {
	close(s.queue)
	return nil
}
