package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/models"
)

type PhotoResponse struct {
	ID               uuid.UUID `json:"id"`
	EventID          uuid.UUID `json:"event_id"`
	Filename         string    `json:"filename"`
	OriginalName     string    `json:"original_name,omitempty"`
	URL              string    `json:"url"`
	Size             int64     `json:"size"`
	Mimetype         string    `json:"mimetype"`
	Description      string    `json:"description,omitempty"`
	Tags             []string  `json:"tags,omitempty"`
	FacesDetected    int       `json:"faces_detected"`
	FaceModel        string    `json:"face_model,omitempty"`
	ProcessingStatus string    `json:"processing_status"`
	ProcessingError  string    `json:"processing_error,omitempty"`
	UploadedAt       string    `json:"uploaded_at"`

	// FaceEncoding is the first stored face vector, the singular view legacy
	// clients expect. Absent until processing completes.
	FaceEncoding []float32 `json:"face_encoding,omitempty"`
}

func NewPhotoResponse(p *models.Photo) PhotoResponse {
	return PhotoResponse{
		ID:               p.ID,
		EventID:          p.EventID,
		Filename:         p.Filename,
		OriginalName:     p.OriginalName,
		URL:              p.URL,
		Size:             p.Size,
		Mimetype:         p.Mimetype,
		Description:      p.Description,
		Tags:             p.Tags,
		FacesDetected:    p.FacesDetected,
		FaceModel:        string(p.FaceModel),
		ProcessingStatus: string(p.ProcessingStatus),
		ProcessingError:  p.ProcessingError,
		UploadedAt:       p.UploadedAt.Format(time.RFC3339),
		FaceEncoding:     p.PrimaryEmbedding(),
	}
}

type UploadResponse struct {
	Photo     PhotoResponse `json:"photo"`
	JobHandle string        `json:"job_handle,omitempty"`
	// Degraded is true when the queue was unavailable and the photo will
	// not be processed automatically.
	Degraded bool `json:"degraded,omitempty"`
}
