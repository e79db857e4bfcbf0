package models

import (
	"time"

	"github.com/google/uuid"
)

// EncodeJob is the message published to the queue for a photo awaiting
// face encoding. ObjectKey locates the optimized image in object storage.
type EncodeJob struct {
	PhotoID   uuid.UUID `json:"photo_id"`
	ObjectKey string    `json:"file_path"`
	UserID    string    `json:"user_id,omitempty"`
	EventID   uuid.UUID `json:"event_id"`
	Timestamp time.Time `json:"timestamp"`
}

type CleanupType string

const (
	CleanupTemp    CleanupType = "temp"
	CleanupStale   CleanupType = "stale"
	CleanupOrphans CleanupType = "orphans"
)

// CleanupJob asks the maintenance worker to sweep one category of garbage.
type CleanupJob struct {
	Type      CleanupType   `json:"type"`
	Directory string        `json:"directory,omitempty"`
	MaxAge    time.Duration `json:"max_age,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// ProcessedEvent is published after a worker finishes a photo, for the API
// to broadcast to WebSocket clients.
type ProcessedEvent struct {
	PhotoID       uuid.UUID        `json:"photo_id"`
	EventID       uuid.UUID        `json:"event_id"`
	Status        ProcessingStatus `json:"status"`
	FacesDetected int              `json:"faces_detected"`
	Model         FaceModel        `json:"model,omitempty"`
	Error         string           `json:"error,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}
