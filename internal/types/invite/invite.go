package invite

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusDeclined Status = "declined"
)

// Invite is a room invitation. Once accepted or declined it is terminal;
// the store refuses any further transition.
type Invite struct {
	ID        uuid.UUID `json:"id" db:"id"`
	RoomID    uuid.UUID `json:"room_id" db:"room_id"`
	RoomName  string    `json:"room_name" db:"room_name"`
	InviteeID uuid.UUID `json:"invitee_id" db:"invitee_id"`
	Status    Status    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type SendInviteRequest struct {
	Username string `json:"username" validate:"required"`
}
