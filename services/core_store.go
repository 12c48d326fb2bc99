package services

import (
	"context"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/dailylog"
	"monkArenaAPI/internal/types/invite"
	"monkArenaAPI/internal/types/leaderboard"
	"monkArenaAPI/internal/types/profile"
)

// CoreStore stitches the individual services into the single contract
// the session controllers consume.
type CoreStore struct {
	Profiles      *ProfileService
	Streaks       *StreakService
	Rooms         *RoomService
	Invites       *InviteService
	Notifications *NotificationService
}

var _ core.Store = (*CoreStore)(nil)

func (s *CoreStore) GetProfile(ctx context.Context, userID uuid.UUID) (*profile.Profile, error) {
	return s.Profiles.GetProfile(ctx, userID)
}

func (s *CoreStore) GetTodayLog(ctx context.Context, userID uuid.UUID) (*dailylog.Log, error) {
	return s.Streaks.GetTodayLog(ctx, userID)
}

func (s *CoreStore) ConfirmStreak(ctx context.Context, userID uuid.UUID) error {
	return s.Streaks.ConfirmStreak(ctx, userID)
}

func (s *CoreStore) ResetStreak(ctx context.Context, userID uuid.UUID) error {
	return s.Streaks.ResetStreak(ctx, userID)
}

func (s *CoreStore) RoomLeaderboard(ctx context.Context, roomID uuid.UUID) ([]*leaderboard.Entry, error) {
	return s.Rooms.RoomLeaderboard(ctx, roomID)
}

func (s *CoreStore) PendingInvites(ctx context.Context, userID uuid.UUID) ([]*invite.Invite, error) {
	return s.Invites.PendingInvites(ctx, userID)
}

func (s *CoreStore) AcceptInvite(ctx context.Context, inviteID, userID uuid.UUID) error {
	return s.Invites.AcceptInvite(ctx, inviteID, userID)
}

func (s *CoreStore) DeclineInvite(ctx context.Context, inviteID, userID uuid.UUID) error {
	return s.Invites.DeclineInvite(ctx, inviteID, userID)
}

func (s *CoreStore) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error {
	return s.Notifications.MarkAllRead(ctx, userID)
}
