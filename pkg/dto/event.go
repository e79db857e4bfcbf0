package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/photoevents/internal/models"
)

type CreateEventRequest struct {
	Name        string    `json:"name" binding:"required"`
	Description string    `json:"description"`
	Date        time.Time `json:"date" binding:"required"`
	AccessCode  string    `json:"access_code"`
}

type EventResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Date        string    `json:"date"`
	CreatedAt   string    `json:"created_at"`
}

func NewEventResponse(ev *models.Event) EventResponse {
	return EventResponse{
		ID:          ev.ID,
		Name:        ev.Name,
		Description: ev.Description,
		Date:        ev.Date.Format(time.RFC3339),
		CreatedAt:   ev.CreatedAt.Format(time.RFC3339),
	}
}
