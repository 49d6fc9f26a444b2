package models

import (
	"strings"
	"time"
)

// Video is one catalog record keyed by the upstream external id.
type Video struct {
	ID           int64     `json:"id"`
	ExternalID   string    `json:"external_id"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Category     string    `json:"category"`
	Genre        *string   `json:"genre,omitempty"`
	Summary      string    `json:"summary"`
	CreatedAt    time.Time `json:"created_at"`
}

// GenreOrEmpty returns the genre or "" when unset.
func (v *Video) GenreOrEmpty() string {
	if v.Genre == nil {
		return ""
	}
	return *v.Genre
}

// FeatureText is the text a video contributes to the similarity corpus:
// title, category, genre and summary, skipping empty fields, single-space joined.
func (v *Video) FeatureText() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{v.Title, v.Category, v.GenreOrEmpty(), v.Summary} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// InsertOutcome reports what an insert-if-absent did.
type InsertOutcome string

const (
	OutcomeCreated       InsertOutcome = "created"
	OutcomeAlreadyExists InsertOutcome = "already_exists"
)

// Known classification values offered to clients. Storage accepts any string.
var (
	KnownCategories = []string{
		"Action", "Animation", "Comedy", "Documentary", "Drama", "Fantasy", "Football",
		"Horror", "Machine Learning", "Musical", "Python", "Sci-Fi", "Tutorial", "Other",
	}
	KnownGenres = []string{
		"Adventure", "Animation", "Biography", "Crime", "Fantasy", "Musical",
		"Mystery", "Romance", "Thriller", "Other",
	}
)
