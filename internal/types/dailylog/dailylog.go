package dailylog

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusConfirmed Status = "confirmed"
	StatusRelapsed  Status = "relapsed"
)

// Log is the per-day entry for a user. At most one row exists per
// (user, calendar day); confirm/relapse commands upsert into it.
type Log struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	LogDate  time.Time `json:"log_date" db:"log_date"`
	Status   Status    `json:"status" db:"status"`
	LoggedAt time.Time `json:"logged_at" db:"logged_at"`
}
