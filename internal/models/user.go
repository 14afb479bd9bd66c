package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a user in the system. Identity is established by the
// fronting gateway, so only the ID is required.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     *string   `json:"email,omitempty"`
	Name      *string   `json:"name,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
