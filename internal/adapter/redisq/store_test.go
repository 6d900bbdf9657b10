package redisq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/vgrab/vgrab/internal/domain"
)

func setupStore(t *testing.T, resultTTL time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewWithClient(client, "downloads", resultTTL)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestStore_Enqueue(t *testing.T) {
	store, mr := setupStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, domain.Payload{URL: "https://youtube.com/watch?v=a", Quality: "720p", Format: "mp4"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job == nil {
		t.Fatal("record not written")
	}
	if job.Status != domain.StatusQueued || job.Progress != 0 {
		t.Errorf("initial record = %q/%d, want queued/0", job.Status, job.Progress)
	}

	if ttl := mr.TTL(key(id)); ttl != time.Hour {
		t.Errorf("record TTL = %s, want 1h", ttl)
	}

	// The queued work item references the job by id only.
	raw, err := mr.Lpop("downloads")
	if err != nil {
		t.Fatalf("work item not queued: %v", err)
	}
	var item WorkItem
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		t.Fatalf("decode work item: %v", err)
	}
	if item.Task != TaskProcessJob {
		t.Errorf("Task = %q, want %q", item.Task, TaskProcessJob)
	}
	if item.JobID != id {
		t.Errorf("JobID = %q, want %q", item.JobID, id)
	}
}

func TestStore_Get_UnknownID(t *testing.T) {
	store, _ := setupStore(t, time.Hour)
	job, err := store.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job != nil {
		t.Errorf("Get(unknown) = %+v, want nil", job)
	}
}

func TestStore_Get_ExpiredRecord(t *testing.T) {
	store, mr := setupStore(t, time.Minute)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, domain.Payload{URL: "u"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job != nil {
		t.Errorf("expired record still returned: %+v", job)
	}
}

func TestStore_Set_MergesAndRefreshesTTL(t *testing.T) {
	store, mr := setupStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, domain.Payload{URL: "u"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	mr.FastForward(30 * time.Minute)

	if err := store.Set(ctx, id, domain.MetaUpdate(&domain.Metadata{Title: "X"})); err != nil {
		t.Fatalf("Set(meta) error = %v", err)
	}
	if err := store.Set(ctx, id, domain.ProgressUpdate(50)); err != nil {
		t.Fatalf("Set(progress) error = %v", err)
	}

	job, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Meta == nil || job.Meta.Title != "X" {
		t.Errorf("Meta = %+v, want title X", job.Meta)
	}
	if job.Progress != 50 {
		t.Errorf("Progress = %d, want 50", job.Progress)
	}

	// Every write refreshes the retention window.
	if ttl := mr.TTL(key(id)); ttl != time.Hour {
		t.Errorf("record TTL after write = %s, want 1h", ttl)
	}
}

func TestStore_Set_CreatesIfAbsent(t *testing.T) {
	store, _ := setupStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Set(ctx, "fresh", domain.ProgressUpdate(10)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	job, err := store.Get(ctx, "fresh")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job == nil || job.ID != "fresh" || job.Progress != 10 {
		t.Errorf("created record = %+v", job)
	}
}

func TestStore_Pop(t *testing.T) {
	store, _ := setupStore(t, time.Hour)
	ctx := context.Background()

	id, err := store.Enqueue(ctx, domain.Payload{URL: "u"})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	task, jobID, err := store.Pop(ctx)
	if err != nil {
		t.Fatalf("Pop() error = %v", err)
	}
	if task != TaskProcessJob || jobID != id {
		t.Errorf("Pop() = (%q, %q), want (%q, %q)", task, jobID, TaskProcessJob, id)
	}
}

func TestStore_Pop_FIFO(t *testing.T) {
	store, _ := setupStore(t, time.Hour)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.Enqueue(ctx, domain.Payload{URL: "u"})
		if err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		ids = append(ids, id)
	}

	for i, want := range ids {
		_, got, err := store.Pop(ctx)
		if err != nil {
			t.Fatalf("Pop() error = %v", err)
		}
		if got != want {
			t.Errorf("drain order[%d] = %q, want %q", i, got, want)
		}
	}
}
