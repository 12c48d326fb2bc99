package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/dailylog"
	"monkArenaAPI/internal/types/invite"
)

// setupTestDB connects to the database from DATABASE_URL, or skips the
// test when none is configured. These tests run against a real schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if err := godotenv.Load("../.env"); err != nil {
		_ = godotenv.Load()
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func testClerkID(prefix string) string {
	return fmt.Sprintf("user_%s_%d", prefix, time.Now().UnixNano())
}

// recordingEvents captures room change publishes in place of Redis.
type recordingEvents struct {
	mu    sync.Mutex
	rooms []uuid.UUID
}

func (r *recordingEvents) PublishRoomChange(_ context.Context, roomID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms = append(r.rooms, roomID)
	return nil
}

func (r *recordingEvents) published() []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uuid.UUID(nil), r.rooms...)
}

func TestStreakFlow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	profiles := NewProfileService(pool)
	streaks := NewStreakService(pool, nil)

	p, err := profiles.CreateProfile(ctx, testClerkID("streak"))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = $1`, p.ID)
	})

	// Fresh account: no log, zero streak.
	today, err := streaks.GetTodayLog(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, today)

	// First confirm.
	require.NoError(t, streaks.ConfirmStreak(ctx, p.ID))

	after, err := profiles.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentStreak)
	assert.Equal(t, 1, after.LongestStreak)
	require.NotNil(t, after.LastConfirmationDate)

	today, err = streaks.GetTodayLog(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.Equal(t, dailylog.StatusConfirmed, today.Status)

	// Second confirm the same day must conflict and not bump anything.
	err = streaks.ConfirmStreak(ctx, p.ID)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	after, err = profiles.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.CurrentStreak)

	// Relapse zeroes the current streak but keeps the longest.
	require.NoError(t, streaks.ResetStreak(ctx, p.ID))

	after, err = profiles.GetProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.CurrentStreak)
	assert.Equal(t, 1, after.LongestStreak)

	today, err = streaks.GetTodayLog(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, today)
	assert.Equal(t, dailylog.StatusRelapsed, today.Status)
}

func TestInviteFlow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	profiles := NewProfileService(pool)
	rooms := NewRoomService(pool, nil)
	invitesSvc := NewInviteService(pool, nil, nil)

	owner, err := profiles.CreateProfile(ctx, testClerkID("owner"))
	require.NoError(t, err)
	invitee, err := profiles.CreateProfile(ctx, testClerkID("invitee"))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = ANY($1)`,
			[]uuid.UUID{owner.ID, invitee.ID})
	})

	rm, err := rooms.CreateRoom(ctx, owner.ID, "quiet hall")
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM rooms WHERE id = $1`, rm.ID)
	})

	inv, err := invitesSvc.InviteToRoom(ctx, rm.ID, owner.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, invite.StatusPending, inv.Status)

	// A second invite to the same pending pair is a conflict.
	_, err = invitesSvc.InviteToRoom(ctx, rm.ID, owner.ID, invitee.ID)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	pending, err := invitesSvc.PendingInvites(ctx, invitee.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "quiet hall", pending[0].RoomName)

	require.NoError(t, invitesSvc.AcceptInvite(ctx, inv.ID, invitee.ID))

	isMember, err := rooms.IsMember(ctx, rm.ID, invitee.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	// Accepted invites are terminal.
	err = invitesSvc.DeclineInvite(ctx, inv.ID, invitee.ID)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	entries, err := rooms.RoomLeaderboard(ctx, rm.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// A confirm or relapse changes the sort key of every room leaderboard
// the user appears in, so each of their rooms gets a change event.
func TestStreakChangePublishesMemberRooms(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	profiles := NewProfileService(pool)
	rooms := NewRoomService(pool, nil)

	p, err := profiles.CreateProfile(ctx, testClerkID("pub"))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = $1`, p.ID)
	})

	rm, err := rooms.CreateRoom(ctx, p.ID, "echo chamber")
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM rooms WHERE id = $1`, rm.ID)
	})

	events := &recordingEvents{}
	streaks := NewStreakService(pool, events)

	require.NoError(t, streaks.ConfirmStreak(ctx, p.ID))
	require.Equal(t, []uuid.UUID{rm.ID}, events.published(), "confirm must nudge the member's rooms")

	require.NoError(t, streaks.ResetStreak(ctx, p.ID))
	assert.Equal(t, []uuid.UUID{rm.ID, rm.ID}, events.published(), "relapse must nudge them too")
}

// Provisioning happens only when the profile row is genuinely missing.
// A resolve that fails for any other reason surfaces the error instead
// of racing a duplicate create.
func TestEnsureProfileOnlyProvisionsOnMissingRow(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	profiles := NewProfileService(pool)

	clerkID := testClerkID("ensure")
	userID, err := profiles.EnsureProfile(ctx, clerkID)
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = $1`, userID)
	})

	// Second sight resolves the same row instead of creating another.
	again, err := profiles.EnsureProfile(ctx, clerkID)
	require.NoError(t, err)
	assert.Equal(t, userID, again)

	// A failing resolve (cancelled context here) is not a missing row.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	failedID := testClerkID("ensure_fail")
	_, err = profiles.EnsureProfile(cancelled, failedID)
	require.Error(t, err)
	assert.False(t, core.IsNotFound(err))

	// Nothing was provisioned for the failed attempt.
	_, err = profiles.ResolveClerkID(ctx, failedID)
	assert.True(t, core.IsNotFound(err))
}

func TestSetupProfileRejectsDuplicateUsername(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	profiles := NewProfileService(pool)

	first, err := profiles.CreateProfile(ctx, testClerkID("dupa"))
	require.NoError(t, err)
	second, err := profiles.CreateProfile(ctx, testClerkID("dupb"))
	require.NoError(t, err)
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM profiles WHERE id = ANY($1)`,
			[]uuid.UUID{first.ID, second.ID})
	})

	username := fmt.Sprintf("taken_%d", time.Now().UnixNano()%1_000_000)
	_, err = profiles.SetupProfile(ctx, first.ID, username, 25)
	require.NoError(t, err)

	_, err = profiles.SetupProfile(ctx, second.ID, username, 30)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
}
