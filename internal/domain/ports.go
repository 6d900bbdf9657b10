package domain

import "context"

// JobStore is the driven port for job record storage and hand-off. Both the
// in-memory backend and the Redis backend implement it; callers only ever
// hold this interface.
type JobStore interface {
	// Enqueue allocates a fresh id, records the initial queued state and
	// hands the job off for processing. The work is not guaranteed started
	// when Enqueue returns, only durably recorded as pending.
	Enqueue(ctx context.Context, payload Payload) (string, error)
	// Get returns a snapshot copy of the record, or (nil, nil) when the id
	// is unknown. Unknown ids are not an error at this layer.
	Get(ctx context.Context, id string) (*Job, error)
	// Set merges the update into the stored record (read-modify-write),
	// creating the record if absent.
	Set(ctx context.Context, id string, u Update) error
	Close() error
}

// Prober fetches media metadata without transferring content.
type Prober interface {
	Probe(ctx context.Context, url string, targetHeight int) (*Metadata, error)
}

// ProgressFunc reports partial transfer state. Implementations may invoke it
// from their own goroutine.
type ProgressFunc func(downloaded, total int64)

// Fetcher transfers the media to a local file and returns its path.
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir, quality string, progress ProgressFunc) (string, error)
}

// Transcoder converts an artifact to the target format and returns the path
// of the converted file.
type Transcoder interface {
	Transcode(ctx context.Context, src, format string) (string, error)
}
