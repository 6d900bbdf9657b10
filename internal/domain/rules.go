package domain

import (
	"net/url"
	"strings"
)

// SupportedFormats is the fixed set of requestable output formats. "source"
// means keep the original container.
var SupportedFormats = map[string]bool{
	"mp4":    true,
	"webm":   true,
	"mkv":    true,
	"mp3":    true,
	"m4a":    true,
	"ogg":    true,
	"source": true,
}

// VideoFormats are the members of SupportedFormats that carry video.
var VideoFormats = map[string]bool{
	"mp4":  true,
	"webm": true,
	"mkv":  true,
}

// QualityPresets maps quality labels to target heights.
var QualityPresets = map[string]int{
	"360p":  360,
	"480p":  480,
	"720p":  720,
	"1024p": 1024,
	"1080p": 1080,
}

// DefaultQuality is used for the "auto" sentinel and unset payloads.
const DefaultQuality = "720p"

// QualityToHeight translates a quality label to a numeric height, falling
// back to the default preset for unknown labels.
func QualityToHeight(quality string) int {
	if h, ok := QualityPresets[quality]; ok {
		return h
	}
	return QualityPresets[DefaultQuality]
}

// ValidateURL ensures the URL has an http(s) scheme and a host inside the
// allowed domain set. Subdomains of an allowed domain are allowed.
func ValidateURL(rawURL string, allowedDomains []string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidURL
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return ErrInvalidURL
	}
	for _, d := range allowedDomains {
		d = strings.ToLower(d)
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return ErrDomainNotAllowed
}
