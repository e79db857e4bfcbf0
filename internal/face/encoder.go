package face

import (
	"context"
	"errors"

	"github.com/your-org/photoevents/internal/models"
)

// Result is the outcome of encoding one image.
type Result struct {
	// Embeddings holds one vector per detected face.
	Embeddings    [][]float32
	Model         models.FaceModel
	FacesDetected int
}

// Encoder produces face embeddings for an image file on disk.
type Encoder interface {
	// Encode extracts face embeddings from the image at path.
	Encode(ctx context.Context, path string) (*Result, error)
	// Name identifies the implementation for logs and metrics.
	Name() string
}

// Error taxonomy. All are recoverable at the caller: the worker decides
// whether the queue retries, the search endpoint reports to the user.
var (
	ErrImageNotFound    = errors.New("image file not found")
	ErrScriptNotFound   = errors.New("encoder command not found")
	ErrProcessExecution = errors.New("encoder process failed")
	ErrNoFaceDetected   = errors.New("no face detected")
)

// Retryable reports whether a fresh attempt could plausibly succeed.
// Content errors (no face) and missing inputs never resolve by retrying.
func Retryable(err error) bool {
	return !errors.Is(err, ErrNoFaceDetected) &&
		!errors.Is(err, ErrImageNotFound) &&
		!errors.Is(err, ErrScriptNotFound)
}
