package recommend

import (
	"errors"

	"github.com/flixtube/catalog/internal/models"
)

// Snapshot is the serializable form of an Index.
type Snapshot struct {
	Videos  []models.Video `json:"videos"`
	Terms   []string       `json:"terms"`
	IDF     []float64      `json:"idf"`
	Vectors []SparseVector `json:"vectors"`
}

// Snapshot captures the index for storage.
func (ix *Index) Snapshot() Snapshot {
	return Snapshot{
		Videos:  ix.videos,
		Terms:   ix.vectorizer.terms,
		IDF:     ix.vectorizer.idf,
		Vectors: ix.vectors,
	}
}

// FromSnapshot restores an index saved with Snapshot.
func FromSnapshot(s Snapshot) (*Index, error) {
	if len(s.Videos) == 0 {
		return nil, ErrEmptyCorpus
	}
	if len(s.Terms) != len(s.IDF) || len(s.Vectors) != len(s.Videos) {
		return nil, errors.New("corrupt index snapshot")
	}
	vz := &Vectorizer{
		vocab: make(map[string]int, len(s.Terms)),
		terms: s.Terms,
		idf:   s.IDF,
	}
	for i, t := range s.Terms {
		vz.vocab[t] = i
	}
	features := make([]string, len(s.Videos))
	for i := range s.Videos {
		features[i] = s.Videos[i].FeatureText()
	}
	return &Index{vectorizer: vz, videos: s.Videos, features: features, vectors: s.Vectors}, nil
}
