// Package cleanup reclaims aged artifacts from the temporary directory. The
// sweep is purely filesystem-age based and never consults job records, so
// it also collects artifacts orphaned by a crashed job.
package cleanup

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Sweeper periodically removes paths older than the TTL under a base dir.
type Sweeper struct {
	baseDir  string
	ttl      time.Duration
	interval time.Duration
}

// NewSweeper creates a sweeper for baseDir.
func NewSweeper(baseDir string, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{baseDir: baseDir, ttl: ttl, interval: interval}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("cleanup sweeper started for %s (ttl %s, every %s)", s.baseDir, s.ttl, s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("cleanup sweeper shutting down")
			return
		case <-ticker.C:
			Sweep(s.baseDir, s.ttl)
		}
	}
}

// Sweep removes every path under baseDir whose modification time is older
// than the TTL. Individual filesystem errors are swallowed; a transient
// failure self-heals on the next sweep.
func Sweep(baseDir string, ttl time.Duration) {
	if _, err := os.Stat(baseDir); err != nil {
		return
	}
	cutoff := time.Now().Add(-ttl)
	sweepDir(baseDir, cutoff)
}

func sweepDir(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			sweepDir(path, cutoff)
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			DeletePath(path)
		}
	}
}

// DeletePath removes a file or directory tree. Absence is not an error;
// any other failure is swallowed and left for the next sweep.
func DeletePath(path string) {
	if err := os.RemoveAll(path); err != nil {
		log.Printf("cleanup: remove %s: %v", path, err)
	}
}
