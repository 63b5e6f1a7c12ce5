package usecase

import (
	"math"
	"sort"
)

// Default ranking parameters.
const (
	DefaultTopK            = 5
	DefaultSimilarityFloor = 0.3
)

// Match is a candidate index selected for a tenant with its similarity.
type Match struct {
	Index int
	Score float64
}

// Ranker selects the candidates closest to a tenant profile.
type Ranker struct {
	K     int
	Floor float64
}

// NewRanker falls back to the defaults for a non-positive k and an unset floor.
func NewRanker(k int, floor float64) Ranker {
	if k <= 0 {
		k = DefaultTopK
	}
	if floor == 0 {
		floor = DefaultSimilarityFloor
	}
	return Ranker{K: k, Floor: floor}
}

// Rank returns at most K matches with score >= Floor, best first. Equal
// scores keep candidate order. An empty profile embedding matches nothing.
func (r Ranker) Rank(profile []float32, candidates [][]float32) []Match {
	if len(profile) == 0 || len(candidates) == 0 || r.K <= 0 {
		return nil
	}

	matches := make([]Match, 0, len(candidates))
	for i, emb := range candidates {
		score := cosineSimilarity(profile, emb)
		if score < r.Floor {
			continue
		}
		matches = append(matches, Match{Index: i, Score: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Index < matches[j].Index
	})

	if len(matches) > r.K {
		matches = matches[:r.K]
	}
	return matches
}

// cosineSimilarity is 0 for empty, zero-length or mismatched vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		na += av * av
		nb += bv * bv
	}
	if na <= 0 || nb <= 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
