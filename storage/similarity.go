package storage

import (
	"math"
	"slices"
	"strings"

	"github.com/poiesic/examscribe/core"
)

// Cosine returns the cosine similarity of a and b. Zero vectors and vectors
// of different lengths score 0.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// ScoredPoint is a search candidate before ranking.
type ScoredPoint struct {
	ID  string
	Hit core.SearchHit
}

// TopK orders candidates by descending score, then ascending ID, and keeps
// at most k of them.
func TopK(candidates []ScoredPoint, k int) []core.SearchHit {
	slices.SortFunc(candidates, func(a, b ScoredPoint) int {
		switch {
		case a.Hit.Score > b.Hit.Score:
			return -1
		case a.Hit.Score < b.Hit.Score:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]core.SearchHit, len(candidates))
	for i, c := range candidates {
		hits[i] = c.Hit
	}
	return hits
}
