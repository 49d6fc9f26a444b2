// Package videoid normalizes user-supplied video references to bare external ids
// and derives the URLs that hang off an id.
package videoid

import (
	"errors"
	"strings"
)

// ErrInvalid is returned when a reference yields an empty id.
var ErrInvalid = errors.New("invalid video id")

const (
	watchBase     = "https://www.youtube.com/watch?v="
	embedBase     = "https://www.youtube.com/embed/"
	thumbnailBase = "https://img.youtube.com/vi/"
	shortHost     = "youtu.be/"
)

// Normalize accepts a bare id, a watch URL (…watch?v=ID&…) or a short URL
// (youtu.be/ID?…) and returns the bare id.
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if i := strings.LastIndex(s, "v="); i >= 0 {
		s = s[i+len("v="):]
		s = cut(s, "&")
	} else {
		if i := strings.LastIndex(s, shortHost); i >= 0 {
			s = s[i+len(shortHost):]
		}
		s = cut(s, "?")
	}
	s = strings.TrimSpace(cut(s, "#"))
	if s == "" {
		return "", ErrInvalid
	}
	return s, nil
}

func cut(s, sep string) string {
	before, _, _ := strings.Cut(s, sep)
	return before
}

// ThumbnailURL is derived deterministically from the id.
func ThumbnailURL(id string) string {
	return thumbnailBase + id + "/0.jpg"
}

// WatchURL returns the canonical watch page URL.
func WatchURL(id string) string {
	return watchBase + id
}

// EmbedURL returns the embeddable player URL.
func EmbedURL(id string) string {
	return embedBase + id
}
