package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vgrab/vgrab/internal/adapter/memory"
	"github.com/vgrab/vgrab/internal/domain"
	"github.com/vgrab/vgrab/internal/pipeline"
)

var testDomains = []string{"youtube.com", "youtu.be"}

type fakeProber struct {
	meta  *domain.Metadata
	err   error
	panic bool
}

func (f *fakeProber) Probe(ctx context.Context, url string, targetHeight int) (*domain.Metadata, error) {
	if f.panic {
		panic("prober exploded")
	}
	if f.meta == nil {
		return &domain.Metadata{}, f.err
	}
	return f.meta, f.err
}

type fakeFetcher struct{}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destDir, quality string, progress domain.ProgressFunc) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(destDir, "video.mp4")
	if err := os.WriteFile(path, []byte("data"), 0644); err != nil {
		return "", err
	}
	progress(512, 1024)
	return path, nil
}

type fakeTranscoder struct{}

func (f *fakeTranscoder) Transcode(ctx context.Context, src, format string) (string, error) {
	return src, nil
}

func testSetup(t *testing.T, prober domain.Prober) (*memory.Store, *domain.JobService, *pipeline.Pipeline) {
	t.Helper()
	store := memory.New(8)
	svc := domain.NewJobService(store, testDomains)
	pipe := pipeline.New(prober, &fakeFetcher{}, &fakeTranscoder{}, t.TempDir(), 500)
	return store, svc, pipe
}

func waitForTerminal(t *testing.T, svc *domain.JobService, id string) *domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Status(context.Background(), id)
		if err == nil && job.Status.Terminal() {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return nil
}

func TestWorker_ProcessesQueuedJob(t *testing.T) {
	store, svc, pipe := testSetup(t, &fakeProber{meta: &domain.Metadata{Title: "clip"}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(svc, pipe, store.Queue()).Run(ctx)

	id, err := svc.Submit(ctx, domain.Payload{URL: "https://youtube.com/watch?v=a", Format: "source"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	job := waitForTerminal(t, svc, id)
	if job.Status != domain.StatusDone {
		t.Fatalf("Status = %q (%s), want done", job.Status, job.Message)
	}
	if job.Result == nil || job.Result.Filename == "" {
		t.Errorf("Result = %+v, want a filename", job.Result)
	}
}

func TestWorker_ProcessesSequentially(t *testing.T) {
	store, svc, pipe := testSetup(t, &fakeProber{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(svc, pipe, store.Queue()).Run(ctx)

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := svc.Submit(ctx, domain.Payload{URL: "https://youtube.com/watch?v=a", Format: "source"})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		job := waitForTerminal(t, svc, id)
		if job.Status != domain.StatusDone {
			t.Errorf("job %s: Status = %q, want done", id, job.Status)
		}
	}
}

func TestWorker_SkipsMissingRecord(t *testing.T) {
	_, svc, pipe := testSetup(t, &fakeProber{})

	queue := make(chan string, 2)
	queue <- "no-such-job"
	close(queue)

	// Run returns once the closed channel drains; a missing record must not
	// hang or panic the loop.
	done := make(chan struct{})
	go func() {
		New(svc, pipe, queue).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not finish draining")
	}
}

func TestWorker_PipelineFailureRecordsError(t *testing.T) {
	store, svc, pipe := testSetup(t, &fakeProber{err: errors.New("probe failed hard")})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(svc, pipe, store.Queue()).Run(ctx)

	id, err := svc.Submit(ctx, domain.Payload{URL: "https://youtube.com/watch?v=a", Format: "source"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	job := waitForTerminal(t, svc, id)
	if job.Status != domain.StatusError {
		t.Fatalf("Status = %q, want error", job.Status)
	}
	if job.Result != nil {
		t.Errorf("Result = %+v, want nil on error", job.Result)
	}
}

func TestWorker_PanicForcesErrorState(t *testing.T) {
	store, svc, pipe := testSetup(t, &fakeProber{panic: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go New(svc, pipe, store.Queue()).Run(ctx)

	id, err := svc.Submit(ctx, domain.Payload{URL: "https://youtube.com/watch?v=a", Format: "source"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	job := waitForTerminal(t, svc, id)
	if job.Status != domain.StatusError {
		t.Fatalf("Status = %q, want error", job.Status)
	}
	if job.Error != "internal_error" {
		t.Errorf("Error = %q, want internal_error", job.Error)
	}
}

func TestWorker_StopsOnCancel(t *testing.T) {
	store, svc, pipe := testSetup(t, &fakeProber{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		New(svc, pipe, store.Queue()).Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not observe cancellation")
	}
}
