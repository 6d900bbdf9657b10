package domain

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var (
	ErrInvalidURL        = errors.New("invalid URL")
	ErrDomainNotAllowed  = errors.New("domain not allowed")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrUnknownQuality    = errors.New("unknown quality")
	ErrJobNotFound       = errors.New("job not found")
	ErrNoBackend         = errors.New("job store not configured")
)

// JobService is the lifecycle manager: the single entry point for creating,
// reading and mutating job records. It never caches state; every read and
// write goes to the backend.
type JobService struct {
	store          JobStore
	allowedDomains []string

	// Serializes every read-modify-write so a progress callback firing from
	// the transfer goroutine can never race the pipeline's own writes.
	mu sync.Mutex
}

// NewJobService creates a JobService over the given store.
func NewJobService(store JobStore, allowedDomains []string) *JobService {
	return &JobService{store: store, allowedDomains: allowedDomains}
}

// Submit validates the request and enqueues a job, returning its id.
// Validation failures never create a job.
func (s *JobService) Submit(ctx context.Context, payload Payload) (string, error) {
	if s.store == nil {
		return "", ErrNoBackend
	}

	format := strings.ToLower(payload.Format)
	if format == "" {
		format = "mp4"
	}
	if !SupportedFormats[format] {
		return "", ErrUnsupportedFormat
	}

	quality := payload.Quality
	if quality == "" || quality == "auto" {
		quality = DefaultQuality
	}
	if _, ok := QualityPresets[quality]; !ok {
		return "", ErrUnknownQuality
	}

	if err := ValidateURL(payload.URL, s.allowedDomains); err != nil {
		return "", err
	}

	return s.store.Enqueue(ctx, Payload{URL: payload.URL, Quality: quality, Format: format})
}

// Status returns a snapshot of the job record, or ErrJobNotFound for ids
// the store does not know.
func (s *JobService) Status(ctx context.Context, id string) (*Job, error) {
	if s.store == nil {
		return nil, ErrNoBackend
	}
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Update merges fields into the job record. All record mutation in the
// system funnels through here; the store stamps UpdatedAt on every write.
func (s *JobService) Update(ctx context.Context, id string, u Update) error {
	if s.store == nil {
		return ErrNoBackend
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Set(ctx, id, u)
}
