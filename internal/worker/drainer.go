package worker

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"github.com/vgrab/vgrab/internal/domain"
)

// WorkQueue is the distributed queue a drainer pulls from. Pop returns
// empty values on an idle poll so the drainer can observe cancellation.
type WorkQueue interface {
	Pop(ctx context.Context) (task, jobID string, err error)
}

// Drainer consumes work items from a distributed queue and dispatches them
// through the task registry. Each worker process runs one drainer;
// parallelism comes from running more processes.
type Drainer struct {
	svc        *domain.JobService
	queue      WorkQueue
	registry   *Registry
	retryDelay time.Duration
	orphaned   atomic.Int64
}

// NewDrainer creates a drainer over a queue and registry.
func NewDrainer(svc *domain.JobService, queue WorkQueue, registry *Registry) *Drainer {
	return &Drainer{svc: svc, queue: queue, registry: registry, retryDelay: time.Second}
}

// Orphaned reports how many picked-up work items referenced a record that
// had already expired or was never written.
func (d *Drainer) Orphaned() int64 {
	return d.orphaned.Load()
}

// Run drains work items until the context is cancelled.
func (d *Drainer) Run(ctx context.Context) {
	log.Printf("drainer started, tasks: %v", d.registry.Tasks())
	for {
		if ctx.Err() != nil {
			log.Printf("drainer shutting down, %d orphaned work items seen", d.Orphaned())
			return
		}
		task, jobID, err := d.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			// Pause before retrying so an unreachable queue is polled, not
			// hammered.
			log.Printf("drainer: pop failed: %v", err)
			time.Sleep(d.retryDelay)
			continue
		}
		if jobID == "" {
			continue
		}
		d.dispatch(ctx, task, jobID)
	}
}

func (d *Drainer) dispatch(ctx context.Context, task, jobID string) {
	fn := d.registry.Resolve(task)
	if fn == nil {
		log.Printf("drainer: no handler for task %q, discarding job %s", task, jobID)
		return
	}
	// A record can expire between enqueue and pickup; the work item is then
	// orphaned and discarded without writing any terminal state.
	if _, err := d.svc.Status(ctx, jobID); err != nil {
		d.orphaned.Add(1)
		log.Printf("drainer: job %s has no record, discarding work item: %v", jobID, err)
		return
	}
	fn(ctx, jobID)
}
