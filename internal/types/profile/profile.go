package profile

import (
	"time"

	"github.com/google/uuid"
)

type Profile struct {
	ID                   uuid.UUID  `json:"id" db:"id"`
	ClerkID              string     `json:"clerkId" db:"clerk_id"`
	Username             string     `json:"username" db:"username"`
	Age                  int        `json:"age" db:"age"`
	CurrentStreak        int        `json:"current_streak" db:"current_streak"`
	LongestStreak        int        `json:"longest_streak" db:"longest_streak"`
	LastConfirmationDate *time.Time `json:"last_confirmation_date" db:"last_confirmation_date"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

type SetupProfileRequest struct {
	Username string `json:"username" validate:"required"`
	Age      int    `json:"age" validate:"required"`
}
