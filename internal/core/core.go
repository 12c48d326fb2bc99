// Package core defines the contract between the session controllers
// (streak engine, room sync, invite workflow) and the backing store.
// The controllers never touch SQL or transport directly; everything
// they need from the outside world goes through Store and Notifier.
package core

import (
	"context"

	"github.com/google/uuid"

	"monkArenaAPI/internal/types/dailylog"
	"monkArenaAPI/internal/types/invite"
	"monkArenaAPI/internal/types/leaderboard"
	"monkArenaAPI/internal/types/profile"
)

// Store is the durable backend the controllers derive their state from.
// Commands never mutate anything client-side; callers re-fetch after a
// command succeeds.
type Store interface {
	GetProfile(ctx context.Context, userID uuid.UUID) (*profile.Profile, error)

	// GetTodayLog returns nil, nil when the user has no log entry for
	// the current calendar day.
	GetTodayLog(ctx context.Context, userID uuid.UUID) (*dailylog.Log, error)

	// ConfirmStreak increments the streak and writes today's log as
	// confirmed. Returns ErrConflict if a log already exists for today.
	ConfirmStreak(ctx context.Context, userID uuid.UUID) error

	// ResetStreak zeroes the current streak and writes today's log as
	// relapsed. The longest streak is left untouched.
	ResetStreak(ctx context.Context, userID uuid.UUID) error

	RoomLeaderboard(ctx context.Context, roomID uuid.UUID) ([]*leaderboard.Entry, error)

	// PendingInvites returns the user's pending invites, newest first.
	PendingInvites(ctx context.Context, userID uuid.UUID) ([]*invite.Invite, error)

	// AcceptInvite / DeclineInvite transition an invite out of pending.
	// ErrConflict if the invite is already accepted or declined.
	AcceptInvite(ctx context.Context, inviteID, userID uuid.UUID) error
	DeclineInvite(ctx context.Context, inviteID, userID uuid.UUID) error

	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error
}

// Subscription is a live change feed for one room. Close releases the
// underlying connection; leaking it keeps events flowing to nobody.
type Subscription interface {
	Close() error
}

// Notifier delivers room change events. onChange is called from a
// background goroutine every time the room's membership or streak data
// changes; it must not block for long.
type Notifier interface {
	SubscribeRoom(roomID uuid.UUID, onChange func()) (Subscription, error)
}
