// Package recommend answers "more like this" queries over the catalog with a
// tf-idf model and cosine k-nearest-neighbour search.
package recommend

import (
	"errors"
	"sort"

	"github.com/flixtube/catalog/internal/models"
)

// ErrEmptyCorpus is returned when there is nothing to recommend from.
var ErrEmptyCorpus = errors.New("no recommendations available")

// Neighbor is one query result.
type Neighbor struct {
	Video    models.Video
	Distance float64
}

// Index is an immutable similarity index over a catalog snapshot. It is safe
// for concurrent reads.
type Index struct {
	vectorizer *Vectorizer
	videos     []models.Video
	features   []string
	vectors    []SparseVector
}

// BuildIndex fits a vectorizer on the feature text of videos, kept in the
// order given.
func BuildIndex(videos []models.Video) (*Index, error) {
	if len(videos) == 0 {
		return nil, ErrEmptyCorpus
	}
	features := make([]string, len(videos))
	for i := range videos {
		features[i] = videos[i].FeatureText()
	}
	vz := Fit(features)
	vectors := make([]SparseVector, len(features))
	for i, f := range features {
		vectors[i] = vz.Transform(f)
	}
	return &Index{
		vectorizer: vz,
		videos:     append([]models.Video(nil), videos...),
		features:   features,
		vectors:    vectors,
	}, nil
}

// Len returns the number of indexed videos.
func (ix *Index) Len() int {
	return len(ix.videos)
}

// Query returns up to k videos nearest to text by cosine distance, ascending,
// ties in catalog order. The video whose external id equals exclude is skipped.
func (ix *Index) Query(text string, k int, exclude string) []Neighbor {
	if k <= 0 {
		return []Neighbor{}
	}
	q := ix.vectorizer.Transform(text)

	out := make([]Neighbor, 0, len(ix.videos))
	for i, v := range ix.videos {
		if exclude != "" && v.ExternalID == exclude {
			continue
		}
		out = append(out, Neighbor{Video: v, Distance: cosineDistance(q, ix.vectors[i])})
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Distance < out[b].Distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// SelfOf returns the external id of the first video whose feature text is
// exactly text, or "" when none matches.
func (ix *Index) SelfOf(text string) string {
	for i, f := range ix.features {
		if f == text {
			return ix.videos[i].ExternalID
		}
	}
	return ""
}

// Lookup finds a video by external id.
func (ix *Index) Lookup(externalID string) (models.Video, bool) {
	for _, v := range ix.videos {
		if v.ExternalID == externalID {
			return v, true
		}
	}
	return models.Video{}, false
}

// FirstByTitle finds the first video in catalog order with exactly this title.
func (ix *Index) FirstByTitle(title string) (models.Video, bool) {
	for _, v := range ix.videos {
		if v.Title == title {
			return v, true
		}
	}
	return models.Video{}, false
}

// cosineDistance assumes both vectors are L2-normalized or empty.
func cosineDistance(a, b SparseVector) float64 {
	if a.IsZero() || b.IsZero() {
		return 1
	}
	d := 1 - a.Dot(b)
	switch {
	case d < 0:
		return 0
	case d > 2:
		return 2
	}
	return d
}
