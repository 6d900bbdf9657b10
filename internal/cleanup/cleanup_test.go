package cleanup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestSweep_RemovesAgedFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.mp4")
	fresh := filepath.Join(dir, "fresh.mp4")
	writeAged(t, old, time.Hour)
	writeAged(t, fresh, time.Minute)

	Sweep(dir, 30*time.Minute)

	if exists(old) {
		t.Error("aged file survived the sweep")
	}
	if !exists(fresh) {
		t.Error("fresh file was removed")
	}
}

func TestSweep_RecursesIntoJobDirs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "job-abc", "video.mp4")
	writeAged(t, nested, time.Hour)
	keep := filepath.Join(dir, "job-def", "video.mp4")
	writeAged(t, keep, time.Minute)

	Sweep(dir, 30*time.Minute)

	if exists(nested) {
		t.Error("aged nested file survived the sweep")
	}
	if !exists(keep) {
		t.Error("fresh nested file was removed")
	}
}

func TestSweep_MissingBaseDir(t *testing.T) {
	// Must be a no-op, not a panic or an error spray.
	Sweep(filepath.Join(t.TempDir(), "nope"), time.Minute)
}

func TestDeletePath(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "job-abc")
	writeAged(t, filepath.Join(target, "video.mp4"), 0)

	DeletePath(target)
	if exists(target) {
		t.Fatal("tree not removed")
	}

	// Absence is fine; a repeat delete must not complain.
	DeletePath(target)
}
