// Package media implements the probe, fetch and transcode operations on
// top of the yt-dlp and ffmpeg binaries.
package media

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/vgrab/vgrab/internal/domain"
)

type ytdlpFormat struct {
	Ext           string  `json:"ext"`
	Height        int     `json:"height"`
	TBR           float64 `json:"tbr"`
	Filesize      int64   `json:"filesize"`
	FilesizeApprx int64   `json:"filesize_approx"`
}

type ytdlpInfo struct {
	Title         string        `json:"title"`
	Duration      float64       `json:"duration"`
	Thumbnail     string        `json:"thumbnail"`
	Filesize      int64         `json:"filesize"`
	FilesizeApprx int64         `json:"filesize_approx"`
	Formats       []ytdlpFormat `json:"formats"`
}

// YTDLP implements domain.Prober and domain.Fetcher by shelling out to
// yt-dlp.
type YTDLP struct {
	binary string
}

// NewYTDLP creates the adapter. An empty binary name defaults to "yt-dlp".
func NewYTDLP(binary string) *YTDLP {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &YTDLP{binary: binary}
}

// Probe fetches metadata and an estimated size without downloading,
// preferring mp4 formats at or below the target height for the estimate.
func (y *YTDLP) Probe(ctx context.Context, url string, targetHeight int) (*domain.Metadata, error) {
	cmd := exec.CommandContext(ctx, y.binary,
		"-J", "--no-warnings", "--skip-download", "--no-playlist", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("yt-dlp probe: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	var info ytdlpInfo
	if err := json.Unmarshal(stdout.Bytes(), &info); err != nil {
		return nil, fmt.Errorf("yt-dlp probe parse: %w", err)
	}

	return &domain.Metadata{
		Title:           info.Title,
		Duration:        info.Duration,
		Thumbnail:       info.Thumbnail,
		EstimatedSizeMB: bytesToMB(estimateSize(&info, targetHeight)),
	}, nil
}

func estimateSize(info *ytdlpInfo, targetHeight int) int64 {
	var best int64
	var bestHeight int
	for _, f := range info.Formats {
		if f.Ext != "mp4" || f.Height > targetHeight {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprx
		}
		if size == 0 {
			continue
		}
		if f.Height > bestHeight {
			best, bestHeight = size, f.Height
		}
	}
	if best > 0 {
		return best
	}
	for _, f := range info.Formats {
		if size := pick(f.Filesize, f.FilesizeApprx); size > 0 {
			return size
		}
	}
	return pick(info.Filesize, info.FilesizeApprx)
}

func pick(a, b int64) int64 {
	if a > 0 {
		return a
	}
	return b
}

func bytesToMB(b int64) float64 {
	if b <= 0 {
		return 0
	}
	return float64(b) / (1024 * 1024)
}

// progressPattern matches yt-dlp --newline progress lines, e.g.
// "[download]  42.5% of 10.00MiB at 1.00MiB/s ETA 00:05".
var progressPattern = regexp.MustCompile(`\[download\]\s+([\d.]+)% of ~?\s*([\d.]+)(KiB|MiB|GiB)`)

// Fetch downloads the media into destDir and returns the path of the
// downloaded file. The progress callback is fed from yt-dlp's stdout as the
// transfer advances.
func (y *YTDLP) Fetch(ctx context.Context, url, destDir, quality string, progress domain.ProgressFunc) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	height := domain.QualityToHeight(quality)
	format := fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]/best", height, height)
	outputTemplate := filepath.Join(destDir, "%(title).150s.%(ext)s")

	cmd := exec.CommandContext(ctx, y.binary,
		"-f", format,
		"--merge-output-format", "mp4",
		"--no-playlist",
		"--newline",
		"-o", outputTemplate,
		url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", err
	}
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("yt-dlp start: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		if downloaded, total, ok := ParseProgressLine(scanner.Text()); ok && progress != nil {
			progress(downloaded, total)
		}
	}

	if err := cmd.Wait(); err != nil {
		return "", fmt.Errorf("yt-dlp download: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	return newestFile(destDir)
}

// ParseProgressLine extracts byte counts from a yt-dlp progress line.
func ParseProgressLine(line string) (downloaded, total int64, ok bool) {
	m := progressPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, false
	}
	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	size, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	switch m[3] {
	case "KiB":
		size *= 1024
	case "MiB":
		size *= 1024 * 1024
	case "GiB":
		size *= 1024 * 1024 * 1024
	}
	total = int64(size)
	downloaded = int64(size * percent / 100)
	return downloaded, total, true
}

// newestFile returns the most recently modified regular file in dir. yt-dlp
// decides the final name, so the adapter has to discover it afterwards.
func newestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var newest string
	var newestMod int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if mod := info.ModTime().UnixNano(); newest == "" || mod > newestMod {
			newest, newestMod = filepath.Join(dir, entry.Name()), mod
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no downloaded file found in %s", dir)
	}
	return newest, nil
}
