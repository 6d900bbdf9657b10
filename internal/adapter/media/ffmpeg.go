package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

var videoPresets = map[string][]string{
	"mp4":  {"-c:v", "libx264", "-c:a", "aac", "-movflags", "+faststart"},
	"webm": {"-c:v", "libvpx-vp9", "-c:a", "libopus"},
	"mkv":  {"-c:v", "libx264", "-c:a", "aac"},
}

var audioPresets = map[string][]string{
	"mp3": {"-vn", "-c:a", "libmp3lame", "-b:a", "192k"},
	"m4a": {"-vn", "-c:a", "aac", "-b:a", "192k"},
	"ogg": {"-vn", "-c:a", "libvorbis", "-q:a", "4"},
}

// FFmpeg implements domain.Transcoder by shelling out to ffmpeg.
type FFmpeg struct {
	binary string
}

// NewFFmpeg creates the adapter. An empty binary name defaults to "ffmpeg".
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{binary: binary}
}

// Transcode converts src to the target format and returns the output path.
// When the source already carries the target extension the output gets a
// _conv suffix so the original is never overwritten.
func (f *FFmpeg) Transcode(ctx context.Context, src, format string) (string, error) {
	format = strings.ToLower(format)
	if format == "" || format == "source" {
		return src, nil
	}

	output := OutputPath(src, format)

	args, ok := videoPresets[format]
	if !ok {
		args, ok = audioPresets[format]
	}
	if !ok {
		return "", fmt.Errorf("unsupported target format: %s", format)
	}

	cmdArgs := append([]string{"-y", "-nostdin", "-loglevel", "error", "-i", src}, args...)
	cmdArgs = append(cmdArgs, output)
	cmd := exec.CommandContext(ctx, f.binary, cmdArgs...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("ffmpeg: %v: %s", err, strings.TrimSpace(stderr.String()))
	}
	return output, nil
}

// OutputPath derives the conversion target path for src and format.
func OutputPath(src, format string) string {
	dot := strings.LastIndex(src, ".")
	if dot < 0 {
		return src + "." + format
	}
	base, ext := src[:dot], strings.ToLower(src[dot+1:])
	if ext == format {
		return base + "_conv." + format
	}
	return base + "." + format
}
