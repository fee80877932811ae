package utils

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// AllowedMIME lists the upload content types accepted for media
var AllowedMIME = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"video/mp4":       true,
	"video/webm":      true,
	"video/quicktime": true,
	"application/pdf": true,
}

const bytesPerMB = 1024 * 1024

var (
	unsafeChars  = regexp.MustCompile(`[^\w\s.-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	nonAlphaNum  = regexp.MustCompile(`[^a-zA-Z0-9]`)
	numberedName = regexp.MustCompile(`^(.*) \((\d+)\)$`)
)

// SanitizeSegment makes a file name safe for an object key
func SanitizeSegment(s string) string {
	s = unsafeChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = whitespace.ReplaceAllString(s, "-")
	return strings.ToLower(s)
}

// FolderPrefix derives the object key prefix for a folder name
func FolderPrefix(name string) string {
	return nonAlphaNum.ReplaceAllString(name, "_")
}

// TopLevelType returns the part of a MIME type before the slash
func TopLevelType(mime string) string {
	if i := strings.Index(mime, "/"); i >= 0 {
		return mime[:i]
	}
	return mime
}

// MatchesFileType matches an exact MIME type, or a top-level group such as
// "image" when filter has no slash.
func MatchesFileType(mime, filter string) bool {
	if filter == "" {
		return true
	}
	if strings.Contains(filter, "/") {
		return strings.EqualFold(mime, filter)
	}
	return strings.EqualFold(TopLevelType(mime), filter)
}

// IsVideo reports whether mime is a video type
func IsVideo(mime string) bool {
	return TopLevelType(mime) == "video"
}

// IsImage reports whether mime is an image type
func IsImage(mime string) bool {
	return TopLevelType(mime) == "image"
}

// MatchesSizeBucket checks a byte size against "0-10", "10-100" or "100+" (MB).
// Unknown buckets match everything.
func MatchesSizeBucket(sizeBytes int64, bucket string) bool {
	mb := float64(sizeBytes) / bytesPerMB
	switch bucket {
	case "0-10":
		return mb <= 10
	case "10-100":
		return mb > 10 && mb <= 100
	case "100+":
		return mb > 100
	}
	return true
}

// MatchesDurationBucket checks seconds against "0-3", "5-10" or "10+" (minutes).
// Unknown buckets match everything.
func MatchesDurationBucket(sec int, bucket string) bool {
	switch bucket {
	case "0-3":
		return sec >= 0 && sec <= 180
	case "5-10":
		return sec >= 300 && sec <= 600
	case "10+":
		return sec >= 600
	}
	return true
}

// NextAvailableName returns name, or "base (n).ext" with the lowest n in
// 1..999 that taken does not report as used. fallback supplies a unique
// suffix when every candidate is taken.
func NextAvailableName(name string, taken func(string) bool, fallback func() string) string {
	if !taken(name) {
		return name
	}
	ext := path.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if m := numberedName.FindStringSubmatch(base); m != nil {
		base = m[1]
	}
	for n := 1; n <= 999; n++ {
		candidate := fmt.Sprintf("%s (%d)%s", base, n, ext)
		if !taken(candidate) {
			return candidate
		}
	}
	return fmt.Sprintf("%s (%s)%s", base, fallback(), ext)
}
