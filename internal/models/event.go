package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a photographed occasion (wedding, conference, ...) that photos
// are uploaded under.
type Event struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
	Date        time.Time `json:"date" db:"date"`
	AccessCode  string    `json:"access_code,omitempty" db:"access_code"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
