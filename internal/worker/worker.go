// Package worker drains queued jobs and drives them through the processing
// pipeline: a single channel consumer for the in-memory backend and a Redis
// queue drainer for the durable backend.
package worker

import (
	"context"
	"fmt"
	"log"

	"github.com/vgrab/vgrab/internal/domain"
	"github.com/vgrab/vgrab/internal/pipeline"
)

// Worker is the single consumer of the in-memory handoff channel. It
// processes strictly one job at a time; backpressure is the channel itself.
type Worker struct {
	svc   *domain.JobService
	pipe  *pipeline.Pipeline
	queue <-chan string
}

// New creates a worker over the handoff channel.
func New(svc *domain.JobService, pipe *pipeline.Pipeline, queue <-chan string) *Worker {
	return &Worker{svc: svc, pipe: pipe, queue: queue}
}

// Run consumes job ids until the context is cancelled or the channel is
// closed. A job mid-flight when cancellation hits is left in its
// last-written status for the cleanup sweeper to reclaim.
func (w *Worker) Run(ctx context.Context) {
	log.Println("worker started")
	for {
		select {
		case <-ctx.Done():
			log.Println("worker shutting down")
			return
		case id, ok := <-w.queue:
			if !ok {
				log.Println("worker queue closed")
				return
			}
			ProcessJob(ctx, w.svc, w.pipe, id)
		}
	}
}

// ProcessJob resolves the record for id and runs the pipeline over it. A
// missing record is skipped; any failure, including a panic inside the
// pipeline, forces the record to an error state. Shared by the in-memory
// worker and the durable drainer.
func ProcessJob(ctx context.Context, svc *domain.JobService, pipe *pipeline.Pipeline, id string) {
	job, err := svc.Status(ctx, id)
	if err != nil {
		log.Printf("job %s: not found, skipping: %v", id, err)
		return
	}

	update := func(u domain.Update) error {
		return svc.Update(ctx, id, u)
	}

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			log.Printf("job %s: panic: %v", id, r)
			if err := svc.Update(ctx, id, domain.ErrorUpdate(msg, "internal_error")); err != nil {
				log.Printf("job %s: record error update failed: %v", id, err)
			}
		}
	}()

	if err := pipe.Run(ctx, id, job.Payload, update); err != nil {
		log.Printf("job %s: failed: %v", id, err)
		return
	}
	log.Printf("job %s: completed", id)
}
