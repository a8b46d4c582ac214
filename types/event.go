package types

import "time"

// Event is an entry in the school's event calendar.
type Event struct {
	ID          int       `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Date        string    `json:"date" db:"date"`
	Image       string    `json:"image,omitempty" db:"image"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
