package recommend

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// SparseVector holds the non-zero weights of a document, Indices ascending.
type SparseVector struct {
	Indices []int     `json:"i"`
	Values  []float64 `json:"v"`
}

// Dot is the inner product of two sparse vectors.
func (a SparseVector) Dot(b SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// IsZero reports whether the vector has no terms.
func (a SparseVector) IsZero() bool {
	return len(a.Indices) == 0
}

// Vectorizer maps text to L2-normalized tf-idf vectors over a fitted vocabulary.
//
// idf(t) = ln((1+n)/(1+df(t))) + 1, the smoothed form, so a term present in
// every document still carries weight 1.
type Vectorizer struct {
	vocab map[string]int
	terms []string
	idf   []float64
}

// Fit learns the vocabulary and idf weights from a corpus.
func Fit(docs []string) *Vectorizer {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(doc) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &Vectorizer{
		vocab: make(map[string]int, len(terms)),
		terms: terms,
		idf:   make([]float64, len(terms)),
	}
	for i, t := range terms {
		v.vocab[t] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}
	return v
}

// Transform vectorizes text. Terms outside the vocabulary are ignored.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := make(map[int]float64)
	for _, tok := range Tokenize(text) {
		if idx, ok := v.vocab[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	vec := SparseVector{
		Indices: make([]int, 0, len(counts)),
		Values:  make([]float64, 0, len(counts)),
	}
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	var norm float64
	for _, idx := range vec.Indices {
		w := counts[idx] * v.idf[idx]
		vec.Values = append(vec.Values, w)
		norm += w * w
	}
	norm = math.Sqrt(norm)
	for i := range vec.Values {
		vec.Values[i] /= norm
	}
	return vec
}

// VocabularySize returns the number of distinct terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.terms)
}

// Tokenize lowercases text and returns every run of two or more word
// characters (letters, digits, underscore) that is not an English stop word.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var out []string
	start := -1
	runes := 0
	flush := func(end int) {
		if start >= 0 && runes >= 2 {
			if tok := text[start:end]; !isStopWord(tok) {
				out = append(out, tok)
			}
		}
		start, runes = -1, 0
	}
	for i, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			if start < 0 {
				start = i
			}
			runes++
			continue
		}
		flush(i)
	}
	flush(len(text))
	return out
}
