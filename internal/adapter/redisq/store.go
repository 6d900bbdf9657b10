// Package redisq implements the durable job backend on Redis: records are
// JSON values keyed job:{id} with a TTL equal to the result retention
// window, and work items travel over a Redis list drained by independent
// worker processes.
package redisq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/vgrab/vgrab/internal/domain"
)

// TaskProcessJob is the registered handler name carried by work items.
const TaskProcessJob = "process_job"

const keyTemplate = "job:%s"

// popTimeout bounds each BRPOP so a drainer observes cancellation promptly.
const popTimeout = 2 * time.Second

// WorkItem is what crosses the distributed queue. It carries only the job
// id; workers re-resolve the full record from the store on pickup.
type WorkItem struct {
	Task  string `json:"task"`
	JobID string `json:"job_id"`
}

// Options configure the Redis backend.
type Options struct {
	// URL is a redis:// connection string.
	URL string
	// Queue is the list key work items are pushed to.
	Queue string
	// ResultTTL is the record retention window; every record write refreshes
	// the key expiry to this value.
	ResultTTL time.Duration
}

// Store implements domain.JobStore on Redis.
type Store struct {
	client    *redis.Client
	queue     string
	resultTTL time.Duration
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Store, error) {
	ropts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(client, opts.Queue, opts.ResultTTL), nil
}

// NewWithClient wraps an existing client. Used by tests.
func NewWithClient(client *redis.Client, queue string, resultTTL time.Duration) *Store {
	return &Store{client: client, queue: queue, resultTTL: resultTTL}
}

func key(id string) string {
	return fmt.Sprintf(keyTemplate, id)
}

// Enqueue writes the initial record with TTL, then pushes a work item
// referencing the job id onto the queue list.
func (s *Store) Enqueue(ctx context.Context, payload domain.Payload) (string, error) {
	id := uuid.NewString()
	job := domain.NewJob(id, payload)
	if err := s.write(ctx, job); err != nil {
		return "", err
	}

	item, err := json.Marshal(WorkItem{Task: TaskProcessJob, JobID: id})
	if err != nil {
		return "", err
	}
	if err := s.client.LPush(ctx, s.queue, item).Err(); err != nil {
		return "", fmt.Errorf("enqueue work item: %w", err)
	}
	return id, nil
}

// Get returns a snapshot of the record, or (nil, nil) when the key is
// absent or already expired.
func (s *Store) Get(ctx context.Context, id string) (*domain.Job, error) {
	raw, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	var job domain.Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Set merges the update into the stored record (read-modify-write),
// creating the key if absent, and refreshes the TTL.
func (s *Store) Set(ctx context.Context, id string, u domain.Update) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job == nil {
		job = &domain.Job{ID: id, CreatedAt: time.Now()}
	}
	job.Apply(u)
	job.UpdatedAt = time.Now()
	return s.write(ctx, job)
}

func (s *Store) write(ctx context.Context, job *domain.Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := s.client.Set(ctx, key(job.ID), raw, s.resultTTL).Err(); err != nil {
		return fmt.Errorf("write job %s: %w", job.ID, err)
	}
	return nil
}

// Pop blocks for the next work item and returns its task name and job id.
// It returns empty values when the poll times out with an empty queue so
// callers can re-check cancellation.
func (s *Store) Pop(ctx context.Context) (task, jobID string, err error) {
	res, err := s.client.BRPop(ctx, popTimeout, s.queue).Result()
	if errors.Is(err, redis.Nil) {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	// BRPop returns [key, value].
	var item WorkItem
	if err := json.Unmarshal([]byte(res[1]), &item); err != nil {
		return "", "", fmt.Errorf("decode work item: %w", err)
	}
	return item.Task, item.JobID, nil
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
