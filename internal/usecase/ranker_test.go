package usecase

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vecAt returns a unit vector whose cosine with (1, 0) equals sim.
func vecAt(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim))}
}

func TestRankFloorAndOrder(t *testing.T) {
	r := NewRanker(5, 0.3)
	profile := []float32{1, 0}

	matches := r.Rank(profile, [][]float32{vecAt(0.4), vecAt(0.2), vecAt(0.9), vecAt(0.31)})
	require.Len(t, matches, 3)
	assert.Equal(t, []int{2, 0, 3}, indices(matches))
	assert.InDelta(t, 0.9, matches[0].Score, 1e-6)
}

func TestRankTopKWithStableTies(t *testing.T) {
	r := NewRanker(2, 0.3)
	profile := []float32{1, 0}

	same := vecAt(0.5)
	matches := r.Rank(profile, [][]float32{vecAt(0.35), same, same, same})
	assert.Equal(t, []int{1, 2}, indices(matches), "first seen wins among equal scores")
}

func TestRankDeterministic(t *testing.T) {
	r := NewRanker(3, 0.3)
	profile := []float32{0.3, 0.7, 0.1}
	candidates := [][]float32{{0.3, 0.7, 0.1}, {0.1, 0.9, 0}, {0.3, 0.7, 0.1}, {1, 0, 0}, {0.2, 0.8, 0.2}}

	first := r.Rank(profile, candidates)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Rank(profile, candidates))
	}
}

func TestRankWithoutProfileEmbedding(t *testing.T) {
	r := NewRanker(5, 0.3)
	assert.Empty(t, r.Rank(nil, [][]float32{{1, 0}}))
	assert.Empty(t, r.Rank([]float32{1, 0}, nil))
}

func TestCosineEdgeCases(t *testing.T) {
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{2, 0}, []float32{5, 0}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
}

func TestNewRankerDefaults(t *testing.T) {
	r := NewRanker(0, 0)
	assert.Equal(t, DefaultTopK, r.K)
	assert.InDelta(t, DefaultSimilarityFloor, r.Floor, 1e-9)
	assert.Empty(t, r.Rank([]float32{1, 0}, [][]float32{vecAt(0.1)}), "unset floor still drops weak matches")

	r = NewRanker(3, -0.5)
	assert.InDelta(t, -0.5, r.Floor, 1e-9, "explicit floor is kept")
}

func indices(ms []Match) []int {
	out := make([]int, 0, len(ms))
	for _, m := range ms {
		out = append(out, m.Index)
	}
	return out
}
