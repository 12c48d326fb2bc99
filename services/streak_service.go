package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/dailylog"
)

// StreakService owns the confirm/relapse commands and the daily log.
// Idempotency lives here, not in the callers: the unique
// (user_id, log_date) constraint makes a second confirm on the same day
// a conflict no matter how many clients race.
type StreakService struct {
	db     *pgxpool.Pool
	events RoomEventSink
}

func NewStreakService(db *pgxpool.Pool, events RoomEventSink) *StreakService {
	return &StreakService{db: db, events: events}
}

// GetTodayLog returns nil, nil when there is no entry for today.
func (s *StreakService) GetTodayLog(ctx context.Context, userID uuid.UUID) (*dailylog.Log, error) {
	query := `
	SELECT id, user_id, log_date, status, logged_at
	FROM daily_logs
	WHERE user_id = $1 AND log_date = CURRENT_DATE
	`

	entry := &dailylog.Log{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&entry.ID,
		&entry.UserID,
		&entry.LogDate,
		&entry.Status,
		&entry.LoggedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get today's log: %w", err)
	}

	return entry, nil
}

// ConfirmStreak writes today's log as confirmed and bumps the counters
// in one transaction. If any log row already exists for today the
// command is rejected with a conflict and nothing changes.
func (s *StreakService) ConfirmStreak(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	logQuery := `
	INSERT INTO daily_logs (id, user_id, log_date, status, logged_at)
	VALUES ($1, $2, CURRENT_DATE, 'confirmed', NOW())
	ON CONFLICT (user_id, log_date) DO NOTHING
	`

	tag, err := tx.Exec(ctx, logQuery, uuid.New(), userID)
	if err != nil {
		return fmt.Errorf("failed to write daily log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.Conflictf("already logged today")
	}

	profileQuery := `
	UPDATE profiles
	SET current_streak = current_streak + 1,
		longest_streak = GREATEST(longest_streak, current_streak + 1),
		last_confirmation_date = CURRENT_DATE,
		updated_at = NOW()
	WHERE id = $1
	`

	tag, err = tx.Exec(ctx, profileQuery, userID)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit confirm: %w", err)
	}

	s.publishMemberRooms(userID)
	return nil
}

// ResetStreak records a relapse for today and zeroes the current
// streak. A relapse is allowed after a confirm on the same day, so the
// log row is upserted rather than insert-or-conflict. longest_streak
// stays as it was.
func (s *StreakService) ResetStreak(ctx context.Context, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	logQuery := `
	INSERT INTO daily_logs (id, user_id, log_date, status, logged_at)
	VALUES ($1, $2, CURRENT_DATE, 'relapsed', NOW())
	ON CONFLICT (user_id, log_date)
	DO UPDATE SET status = 'relapsed', logged_at = NOW()
	`

	if _, err := tx.Exec(ctx, logQuery, uuid.New(), userID); err != nil {
		return fmt.Errorf("failed to write daily log: %w", err)
	}

	profileQuery := `
	UPDATE profiles
	SET current_streak = 0, updated_at = NOW()
	WHERE id = $1
	`

	tag, err := tx.Exec(ctx, profileQuery, userID)
	if err != nil {
		return fmt.Errorf("failed to reset streak: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit relapse: %w", err)
	}

	s.publishMemberRooms(userID)
	return nil
}

// publishMemberRooms nudges every room the user belongs to after a
// streak change, since the streak is the sort key of each room's
// leaderboard. Best effort: a failed publish only delays the refresh
// until the next change on that room.
func (s *StreakService) publishMemberRooms(userID uuid.UUID) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := s.db.Query(ctx, `SELECT room_id FROM room_members WHERE user_id = $1`, userID)
	if err != nil {
		log.Printf("StreakService: failed to list rooms for user %s: %v", userID, err)
		return
	}
	defer rows.Close()

	var roomIDs []uuid.UUID
	for rows.Next() {
		var roomID uuid.UUID
		if err := rows.Scan(&roomID); err != nil {
			log.Printf("StreakService: failed to scan room id: %v", err)
			return
		}
		roomIDs = append(roomIDs, roomID)
	}

	for _, roomID := range roomIDs {
		if err := s.events.PublishRoomChange(ctx, roomID); err != nil {
			log.Printf("StreakService: failed to publish change for room %s: %v", roomID, err)
		}
	}
}
