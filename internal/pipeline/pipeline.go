// Package pipeline drives a job from queued to a terminal state, calling
// the external probe/fetch/transcode operations and reporting every change
// through the lifecycle manager's merge-update choke point.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/vgrab/vgrab/internal/domain"
)

// UpdateFunc applies a merge update to the job being processed.
type UpdateFunc func(domain.Update) error

// Pipeline executes the processing state machine for one job at a time.
type Pipeline struct {
	prober     domain.Prober
	fetcher    domain.Fetcher
	transcoder domain.Transcoder
	tmpDir     string
	maxSizeMB  int
}

// New builds a pipeline over the external media operations.
func New(prober domain.Prober, fetcher domain.Fetcher, transcoder domain.Transcoder, tmpDir string, maxSizeMB int) *Pipeline {
	return &Pipeline{
		prober:     prober,
		fetcher:    fetcher,
		transcoder: transcoder,
		tmpDir:     tmpDir,
		maxSizeMB:  maxSizeMB,
	}
}

// Run processes the job. Failures are recorded on the job via update and
// also returned for the worker's log.
func (p *Pipeline) Run(ctx context.Context, id string, payload domain.Payload, update UpdateFunc) error {
	if payload.URL == "" {
		p.fail(id, update, domain.ErrorUpdate("Source URL is missing.", "missing_url"))
		return fmt.Errorf("job %s: missing source URL", id)
	}

	format := payload.Format
	if format == "" {
		format = "mp4"
	}
	if !domain.SupportedFormats[format] {
		p.fail(id, update, domain.ErrorUpdate(fmt.Sprintf("Format %q is not supported.", format), "unsupported_format"))
		return fmt.Errorf("job %s: unsupported format %q", id, format)
	}

	targetHeight := domain.QualityToHeight(payload.Quality)
	outputDir := filepath.Join(p.tmpDir, id)

	if err := p.process(ctx, id, payload, format, targetHeight, outputDir, update); err != nil {
		// A cancelled run writes no terminal state: the record stays in its
		// last active status, orphaned for the sweeper and the record TTL.
		if ctx.Err() == nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			p.fail(id, update, domain.ErrorUpdate(err.Error(), err.Error()))
		}
		return fmt.Errorf("job %s: %w", id, err)
	}
	return nil
}

func (p *Pipeline) fail(id string, update UpdateFunc, u domain.Update) {
	if err := update(u); err != nil {
		log.Printf("job %s: record failure state: %v", id, err)
	}
}

func (p *Pipeline) process(ctx context.Context, id string, payload domain.Payload, format string, targetHeight int, outputDir string, update UpdateFunc) error {
	if err := update(domain.StateUpdate(domain.StatusFetching, "Fetching metadata", 5)); err != nil {
		return fmt.Errorf("record fetching state: %w", err)
	}
	meta, err := p.prober.Probe(ctx, payload.URL, targetHeight)
	if err != nil {
		return err
	}
	if err := update(domain.MetaUpdate(meta)); err != nil {
		return fmt.Errorf("record metadata: %w", err)
	}
	if err := p.checkEstimatedSize(meta); err != nil {
		return err
	}

	if err := update(domain.StateUpdate(domain.StatusDownloading, "Downloading media...", 15)); err != nil {
		return fmt.Errorf("record downloading state: %w", err)
	}
	sourcePath, err := p.fetch(ctx, payload, outputDir, update)
	if err != nil {
		return err
	}
	if err := p.checkFileSize(sourcePath); err != nil {
		return err
	}

	finalPath := sourcePath
	if format != "source" {
		progress := 92
		if domain.VideoFormats[format] {
			progress = 95
		}
		if err := update(domain.StateUpdate(domain.StatusConverting, fmt.Sprintf("Converting to %s...", format), progress)); err != nil {
			return fmt.Errorf("record converting state: %w", err)
		}
		converted, err := p.transcoder.Transcode(ctx, sourcePath, format)
		if err != nil {
			// The pre-conversion artifact stays on disk for the sweeper.
			return err
		}
		if converted != sourcePath {
			if err := os.Remove(sourcePath); err != nil {
				log.Printf("job %s: remove pre-conversion artifact: %v", id, err)
			}
		}
		finalPath = converted
	}

	if err := update(domain.DoneUpdate("File is ready to download.", &domain.Result{
		FilePath: finalPath,
		Filename: filepath.Base(finalPath),
		Mimetype: MimetypeByExt(filepath.Ext(finalPath)),
		Meta:     meta,
	})); err != nil {
		return fmt.Errorf("record completion: %w", err)
	}
	return nil
}

// fetch runs the blocking transfer in its own goroutine. Progress callbacks
// arrive from that goroutine and still funnel through update, which the
// lifecycle manager serializes against the pipeline's own writes.
func (p *Pipeline) fetch(ctx context.Context, payload domain.Payload, outputDir string, update UpdateFunc) (string, error) {
	hook := func(downloaded, total int64) {
		if total <= 0 {
			return
		}
		percent := 15 + int(downloaded*70/total)
		if percent > 90 {
			percent = 90
		}
		if percent < 20 {
			percent = 20
		}
		update(domain.ProgressUpdate(percent))
	}

	type fetchResult struct {
		path string
		err  error
	}
	done := make(chan fetchResult, 1)
	go func() {
		path, err := p.fetcher.Fetch(ctx, payload.URL, outputDir, payload.Quality, hook)
		done <- fetchResult{path: path, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.path, res.err
	}
}

func (p *Pipeline) checkEstimatedSize(meta *domain.Metadata) error {
	if meta == nil || meta.EstimatedSizeMB == 0 {
		return nil
	}
	if meta.EstimatedSizeMB > float64(p.maxSizeMB) {
		return fmt.Errorf("estimated size (~%.2f MB) exceeds the %d MB limit", meta.EstimatedSizeMB, p.maxSizeMB)
	}
	return nil
}

func (p *Pipeline) checkFileSize(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat downloaded file: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(p.maxSizeMB) {
		return fmt.Errorf("file size %.2f MB exceeds the %d MB limit", sizeMB, p.maxSizeMB)
	}
	return nil
}
