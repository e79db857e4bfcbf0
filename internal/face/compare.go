package face

import (
	"math"
	"sort"
)

// Similarity computes the cosine similarity of two embeddings, rescaled from
// [-1, 1] to [0, 1]. It returns 0 for mismatched lengths, empty vectors or
// zero-norm vectors so callers never have to guard against stored garbage.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
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

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] against floating point drift
	if cos > 1 {
		cos = 1
	}
	if cos < -1 {
		cos = -1
	}

	return (cos + 1) / 2
}

// Candidate is one photo's face vector under comparison.
type Candidate struct {
	ID        string
	Embedding []float32
}

// Match is a candidate whose similarity cleared the threshold.
type Match struct {
	ID         string
	Similarity float64
}

// FindSimilar linearly scans candidates against the reference embedding,
// keeps those with similarity >= threshold and returns at most limit
// matches sorted by descending similarity. The scan is O(n) on purpose:
// the corpus is at most a few dozen photos per event.
func FindSimilar(reference []float32, candidates []Candidate, threshold float64, limit int) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, c := range candidates {
		sim := Similarity(reference, c.Embedding)
		if sim >= threshold {
			matches = append(matches, Match{ID: c.ID, Similarity: sim})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
