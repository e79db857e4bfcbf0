package dto

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/models"
)

func TestNewPhotoResponseCarriesPrimaryEncoding(t *testing.T) {
	p := &models.Photo{
		ID:               uuid.New(),
		EventID:          uuid.New(),
		Filename:         "photo-1.jpg",
		ProcessingStatus: models.StatusCompleted,
		Embeddings:       [][]float32{{0.1, 0.2}, {0.3, 0.4}},
		FacesDetected:    2,
		FaceModel:        models.ModelFacenet,
		UploadedAt:       time.Now(),
	}

	resp := NewPhotoResponse(p)
	if len(resp.FaceEncoding) != 2 || resp.FaceEncoding[0] != 0.1 {
		t.Errorf("FaceEncoding = %v, want first face vector", resp.FaceEncoding)
	}
	if resp.FacesDetected != 2 {
		t.Errorf("faces detected = %d, want 2", resp.FacesDetected)
	}
}

func TestNewPhotoResponseWithoutEncoding(t *testing.T) {
	p := &models.Photo{
		ID:               uuid.New(),
		ProcessingStatus: models.StatusPending,
		UploadedAt:       time.Now(),
	}

	resp := NewPhotoResponse(p)
	if resp.FaceEncoding != nil {
		t.Errorf("FaceEncoding = %v, want nil while pending", resp.FaceEncoding)
	}
}
