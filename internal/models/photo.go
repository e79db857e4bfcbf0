package models

import (
	"time"

	"github.com/google/uuid"
)

// FaceModel identifies which embedding model produced a vector.
type FaceModel string

const (
	ModelFacenet    FaceModel = "Facenet"
	ModelFacenet512 FaceModel = "Facenet512"
	ModelOpenFace   FaceModel = "OpenFace"
	ModelDeepFace   FaceModel = "DeepFace"
	ModelDeepID     FaceModel = "DeepID"
	ModelDlib       FaceModel = "Dlib"
	ModelArcFace    FaceModel = "ArcFace"
	ModelFallback   FaceModel = "fallback"
)

// Valid reports whether m is one of the known embedding models.
func (m FaceModel) Valid() bool {
	switch m {
	case ModelFacenet, ModelFacenet512, ModelOpenFace, ModelDeepFace,
		ModelDeepID, ModelDlib, ModelArcFace, ModelFallback:
		return true
	}
	return false
}

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// CanTransition reports whether a photo may move from s to next.
// The status machine only moves forward:
// pending → processing → completed | failed.
func (s ProcessingStatus) CanTransition(next ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

type Photo struct {
	ID           uuid.UUID `json:"id" db:"id"`
	EventID      uuid.UUID `json:"event_id" db:"event_id"`
	Filename     string    `json:"filename" db:"filename"`
	OriginalName string    `json:"original_name" db:"original_name"`
	ObjectKey    string    `json:"object_key" db:"object_key"`
	URL          string    `json:"url" db:"url"`
	Size         int64     `json:"size" db:"size"`
	Mimetype     string    `json:"mimetype" db:"mimetype"`
	Description  string    `json:"description,omitempty" db:"description"`
	Tags         []string  `json:"tags,omitempty" db:"tags"`
	UploadedBy   string    `json:"uploaded_by,omitempty" db:"uploaded_by"`

	// Embeddings holds one vector per detected face, in detection order.
	// Empty until processing completes.
	Embeddings     [][]float32 `json:"-" db:"-"`
	FacesDetected  int         `json:"faces_detected" db:"faces_detected"`
	FaceModel      FaceModel   `json:"face_model,omitempty" db:"face_model"`

	ProcessingStatus      ProcessingStatus `json:"processing_status" db:"processing_status"`
	ProcessingError       string           `json:"processing_error,omitempty" db:"processing_error"`
	ProcessingStartedAt   *time.Time       `json:"processing_started_at,omitempty" db:"processing_started_at"`
	ProcessingCompletedAt *time.Time       `json:"processing_completed_at,omitempty" db:"processing_completed_at"`

	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// PrimaryEmbedding returns the first stored face vector, or nil when the
// photo has none. Callers that only handle one face per photo use this view.
func (p *Photo) PrimaryEmbedding() []float32 {
	if len(p.Embeddings) == 0 {
		return nil
	}
	return p.Embeddings[0]
}
