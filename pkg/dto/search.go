package dto

import (
	"github.com/google/uuid"
)

type SearchResultItem struct {
	PhotoID    uuid.UUID `json:"photo_id"`
	Filename   string    `json:"filename"`
	URL        string    `json:"url"`
	Similarity float64   `json:"similarity"`
	EventID    uuid.UUID `json:"event_id"`
	UploadDate string    `json:"upload_date"`
}

type SearchResponse struct {
	Results   []SearchResultItem `json:"results"`
	Total     int                `json:"total"`
	Threshold float64            `json:"threshold"`
	Model     string             `json:"model"`
}

// WSEvent is a processing notification pushed to WebSocket clients.
type WSEvent struct {
	Type    string      `json:"type"`
	EventID uuid.UUID   `json:"event_id"`
	Data    interface{} `json:"data"`
}
