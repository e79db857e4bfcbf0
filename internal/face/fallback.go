package face

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/your-org/photoevents/internal/models"
)

// FallbackDimension matches the legacy Facenet embedding length so fallback
// vectors are comparable with each other.
const FallbackDimension = 128

// FallbackEncoder derives a deterministic pseudo-embedding from the file
// bytes. It is used when the real embedding backend is unavailable: search
// still works (identical files match exactly) with degraded semantics.
type FallbackEncoder struct{}

func (FallbackEncoder) Name() string { return "fallback" }

func (FallbackEncoder) Encode(_ context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return nil, fmt.Errorf("read image: %w", err)
	}

	sum := md5.Sum(data)
	hash := hex.EncodeToString(sum[:])

	// Spread the hex digest over the vector, each byte scaled into [-1, 1].
	embedding := make([]float32, FallbackDimension)
	for i := range embedding {
		c := hash[i%len(hash)]
		embedding[i] = float32(c)/255*2 - 1
	}

	return &Result{
		Embeddings:    [][]float32{embedding},
		Model:         models.ModelFallback,
		FacesDetected: 1,
	}, nil
}
