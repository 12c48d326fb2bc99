package room

import (
	"time"

	"github.com/google/uuid"
)

type Room struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerID     uuid.UUID `json:"owner_id" db:"owner_id"`
	MemberCount int       `json:"member_count" db:"member_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Member struct {
	RoomID   uuid.UUID `json:"room_id" db:"room_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	Username string    `json:"username" db:"username"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
}

type CreateRoomRequest struct {
	Name string `json:"name" validate:"required"`
}
