package face

import (
	"math"
	"math/rand"
	"testing"
)

func TestSimilarityDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
	}{
		{"both empty", nil, nil},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}},
		{"zero norm a", []float32{0, 0, 0}, []float32{1, 2, 3}},
		{"zero norm b", []float32{1, 2, 3}, []float32{0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Similarity(tt.a, tt.b); got != 0 {
				t.Errorf("Similarity() = %v, want 0", got)
			}
		})
	}
}

func TestSimilaritySelf(t *testing.T) {
	v := []float32{0.5, -0.3, 0.8, 0.1}
	got := Similarity(v, v)
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", got)
	}
}

func TestSimilarityOpposite(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{-1, 0, 0}
	got := Similarity(a, b)
	if math.Abs(got) > 1e-9 {
		t.Errorf("opposite vectors similarity = %v, want 0", got)
	}
}

func TestSimilarityOrthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	got := Similarity(a, b)
	if math.Abs(got-0.5) > 1e-9 {
		t.Errorf("orthogonal vectors similarity = %v, want 0.5", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		a := randomVector(rng, 128)
		b := randomVector(rng, 128)
		ab := Similarity(a, b)
		ba := Similarity(b, a)
		if math.Abs(ab-ba) > 1e-12 {
			t.Fatalf("similarity not symmetric: %v vs %v", ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("similarity %v outside [0, 1]", ab)
		}
	}
}

func TestFindSimilarThresholdAndOrder(t *testing.T) {
	ref := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "exact", Embedding: []float32{1, 0, 0}},            // 1.0
		{ID: "close", Embedding: []float32{1, 0.1, 0}},          // ~0.997
		{ID: "orthogonal", Embedding: []float32{0, 1, 0}},       // 0.5
		{ID: "opposite", Embedding: []float32{-1, 0, 0}},        // 0.0
		{ID: "angled", Embedding: []float32{1, 1, 0}},           // ~0.854
	}

	matches := FindSimilar(ref, candidates, 0.7, 0)
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3: %+v", len(matches), matches)
	}

	wantOrder := []string{"exact", "close", "angled"}
	for i, want := range wantOrder {
		if matches[i].ID != want {
			t.Errorf("match[%d] = %s, want %s", i, matches[i].ID, want)
		}
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not sorted descending at %d", i)
		}
	}
}

func TestFindSimilarLimit(t *testing.T) {
	ref := []float32{1, 0}
	candidates := make([]Candidate, 20)
	for i := range candidates {
		candidates[i] = Candidate{ID: "c", Embedding: []float32{1, 0}}
	}

	matches := FindSimilar(ref, candidates, 0.7, 10)
	if len(matches) != 10 {
		t.Errorf("got %d matches, want 10", len(matches))
	}
}

func TestFindSimilarHighThreshold(t *testing.T) {
	ref := []float32{1, 0, 0}
	candidates := []Candidate{
		{ID: "a", Embedding: []float32{1, 0, 0}},
		{ID: "b", Embedding: []float32{1, 0.05, 0}},
		{ID: "c", Embedding: []float32{0, 1, 0}},
		{ID: "d", Embedding: []float32{0.2, 1, 0}},
		{ID: "e", Embedding: []float32{-1, 0, 0}},
	}

	matches := FindSimilar(ref, candidates, 0.9, 0)
	if len(matches) != 2 {
		t.Fatalf("got %d matches above 0.9, want 2: %+v", len(matches), matches)
	}
	for _, m := range matches {
		if m.Similarity < 0.9 {
			t.Errorf("match %s has similarity %v below threshold", m.ID, m.Similarity)
		}
	}
}

func TestFindSimilarEmptyCandidates(t *testing.T) {
	matches := FindSimilar([]float32{1, 0}, nil, 0.7, 10)
	if len(matches) != 0 {
		t.Errorf("got %d matches from empty candidates, want 0", len(matches))
	}
}

func randomVector(rng *rand.Rand, n int) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = rng.Float32()*2 - 1
	}
	return v
}
