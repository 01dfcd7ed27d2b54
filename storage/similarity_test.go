package storage

import (
	"testing"

	"github.com/poiesic/examscribe/core"
	"github.com/stretchr/testify/assert"
)

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"scaled", []float32{1, 0}, []float32{5, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 1}, []float32{-1, -1}, -1},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"length mismatch", []float32{1}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cosine(tt.a, tt.b), 1e-6)
		})
	}
}

func TestTopK(t *testing.T) {
	candidates := []ScoredPoint{
		{ID: "c", Hit: core.SearchHit{Text: "low", Score: 0.1}},
		{ID: "b", Hit: core.SearchHit{Text: "tie-b", Score: 0.5}},
		{ID: "a", Hit: core.SearchHit{Text: "tie-a", Score: 0.5}},
		{ID: "d", Hit: core.SearchHit{Text: "high", Score: 0.9}},
	}

	hits := TopK(candidates, 3)
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	assert.Equal(t, []string{"high", "tie-a", "tie-b"}, texts)

	assert.Len(t, TopK(nil, 3), 0)
}
