package urls

import (
	"errors"
	"regexp"
	"strings"
)

// ErrInvalidReference is returned when a string does not reference a YouTube video.
var ErrInvalidReference = errors.New("invalid video reference")

// VideoIDLength is the fixed length of a canonical YouTube video id.
const VideoIDLength = 11

// idTail makes sure the captured id is not the prefix of a longer token.
const idTail = `(?:[^A-Za-z0-9_-]|$)`

// referencePatterns are tried in order; the first match wins.
var referencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`youtube\.com/watch\?(?:[^#\s]*&)?v=([A-Za-z0-9_-]{11})` + idTail),
	regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]{11})` + idTail),
	regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{11})` + idTail),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})` + idTail),
	regexp.MustCompile(`youtube\.com/live/([A-Za-z0-9_-]{11})` + idTail),
	regexp.MustCompile(`youtube\.com/v/([A-Za-z0-9_-]{11})` + idTail),
}

var bareVideoID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ExtractVideoID returns the canonical video id referenced by ref.
// It accepts watch, short-link, embed, shorts, live and /v/ URLs, and a bare id.
func ExtractVideoID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidReference
	}

	for _, pattern := range referencePatterns {
		if m := pattern.FindStringSubmatch(ref); m != nil {
			return m[1], nil
		}
	}

	if bareVideoID.MatchString(ref) {
		return ref, nil
	}

	return "", ErrInvalidReference
}

// IsVideoURL reports whether ref resolves to a video id.
func IsVideoURL(ref string) bool {
	_, err := ExtractVideoID(ref)
	return err == nil
}

// WatchURL returns the canonical watch page URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ThumbnailURL returns the high quality thumbnail URL for a video id.
func ThumbnailURL(videoID string) string {
	return "https://img.youtube.com/vi/" + videoID + "/hqdefault.jpg"
}
