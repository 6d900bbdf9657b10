package pipeline

import (
	"mime"
	"strings"
)

// Extensions the platform mime database commonly misses.
var extraMimetypes = map[string]string{
	".mkv":  "video/x-matroska",
	".m4a":  "audio/mp4",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".mp4":  "video/mp4",
}

// MimetypeByExt resolves a content type for a file extension, falling back
// to application/octet-stream.
func MimetypeByExt(ext string) string {
	ext = strings.ToLower(ext)
	if mt, ok := extraMimetypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}
