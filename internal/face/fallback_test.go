package face

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/your-org/photoevents/internal/models"
)

func TestFallbackEncoderDeterministic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("not really a jpeg but content is all that matters"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := FallbackEncoder{}
	first, err := enc.Encode(context.Background(), path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	second, err := enc.Encode(context.Background(), path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	if len(first.Embeddings) != 1 || len(second.Embeddings) != 1 {
		t.Fatalf("expected exactly one embedding per result")
	}
	a, b := first.Embeddings[0], second.Embeddings[0]
	if len(a) != FallbackDimension {
		t.Fatalf("embedding length = %d, want %d", len(a), FallbackDimension)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding not deterministic at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFallbackEncoderValueRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}

	result, err := FallbackEncoder{}.Encode(context.Background(), path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	for i, v := range result.Embeddings[0] {
		if v < -1 || v > 1 {
			t.Errorf("embedding[%d] = %v outside [-1, 1]", i, v)
		}
	}
	if result.Model != models.ModelFallback {
		t.Errorf("model = %s, want %s", result.Model, models.ModelFallback)
	}
	if result.FacesDetected != 1 {
		t.Errorf("faces detected = %d, want 1", result.FacesDetected)
	}
}

func TestFallbackEncoderDifferentFilesDiffer(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.jpg")
	pathB := filepath.Join(dir, "b.jpg")
	os.WriteFile(pathA, []byte("first file"), 0o644)
	os.WriteFile(pathB, []byte("second file"), 0o644)

	enc := FallbackEncoder{}
	resA, _ := enc.Encode(context.Background(), pathA)
	resB, _ := enc.Encode(context.Background(), pathB)

	same := true
	for i := range resA.Embeddings[0] {
		if resA.Embeddings[0][i] != resB.Embeddings[0][i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different files produced identical embeddings")
	}
}

func TestFallbackEncoderMissingFile(t *testing.T) {
	_, err := FallbackEncoder{}.Encode(context.Background(), filepath.Join(t.TempDir(), "missing.jpg"))
	if !errors.Is(err, ErrImageNotFound) {
		t.Errorf("error = %v, want ErrImageNotFound", err)
	}
}

func TestFallbackUnrelatedFilesNeverMatchPerfectly(t *testing.T) {
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.jpg")
	pathB := filepath.Join(dir, "b.jpg")
	os.WriteFile(pathA, []byte("first file"), 0o644)
	os.WriteFile(pathB, []byte("second file"), 0o644)

	enc := FallbackEncoder{}
	resA, _ := enc.Encode(context.Background(), pathA)
	resB, _ := enc.Encode(context.Background(), pathB)

	sim := Similarity(resA.Embeddings[0], resB.Embeddings[0])
	if sim >= 0.99 {
		t.Errorf("unrelated files similarity = %v, want < 0.99", sim)
	}
}

func TestFallbackSelfSimilarity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("same bytes match exactly"), 0o644); err != nil {
		t.Fatal(err)
	}

	enc := FallbackEncoder{}
	resA, _ := enc.Encode(context.Background(), path)
	resB, _ := enc.Encode(context.Background(), path)

	sim := Similarity(resA.Embeddings[0], resB.Embeddings[0])
	if sim < 0.999 {
		t.Errorf("identical files similarity = %v, want ~1", sim)
	}
}
