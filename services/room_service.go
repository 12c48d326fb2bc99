package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/leaderboard"
	"monkArenaAPI/internal/types/room"
)

type RoomService struct {
	db     *pgxpool.Pool
	events RoomEventSink
}

func NewRoomService(db *pgxpool.Pool, events RoomEventSink) *RoomService {
	return &RoomService{db: db, events: events}
}

// MyRooms lists the rooms the user belongs to, newest first.
func (s *RoomService) MyRooms(ctx context.Context, userID uuid.UUID) ([]*room.Room, error) {
	query := `
	SELECT
		r.id,
		r.name,
		r.owner_id,
		(SELECT COUNT(*) FROM room_members rm WHERE rm.room_id = r.id) AS member_count,
		r.created_at
	FROM rooms r
	INNER JOIN room_members m ON m.room_id = r.id AND m.user_id = $1
	ORDER BY r.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*room.Room
	for rows.Next() {
		r := &room.Room{}
		if err := rows.Scan(&r.ID, &r.Name, &r.OwnerID, &r.MemberCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, r)
	}

	return rooms, nil
}

// CreateRoom creates the room and makes the creator its owner and first
// member in one transaction.
func (s *RoomService) CreateRoom(ctx context.Context, ownerID uuid.UUID, name string) (*room.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("room name is required")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	r := &room.Room{ID: uuid.New(), Name: name, OwnerID: ownerID, MemberCount: 1}

	roomQuery := `
	INSERT INTO rooms (id, name, owner_id, created_at)
	VALUES ($1, $2, $3, NOW())
	RETURNING created_at
	`
	if err := tx.QueryRow(ctx, roomQuery, r.ID, r.Name, r.OwnerID).Scan(&r.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	memberQuery := `
	INSERT INTO room_members (room_id, user_id, joined_at)
	VALUES ($1, $2, NOW())
	`
	if _, err := tx.Exec(ctx, memberQuery, r.ID, ownerID); err != nil {
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit room: %w", err)
	}

	return r, nil
}

// LeaveRoom removes the user's membership. When the owner leaves, the
// whole room goes with them (memberships and invites cascade).
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var ownerID uuid.UUID
	err = tx.QueryRow(ctx, `SELECT owner_id FROM rooms WHERE id = $1`, roomID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to load room: %w", err)
	}

	if ownerID == userID {
		if _, err := tx.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, roomID); err != nil {
			return fmt.Errorf("failed to delete room: %w", err)
		}
	} else {
		tag, err := tx.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, userID)
		if err != nil {
			return fmt.Errorf("failed to leave room: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return core.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit leave: %w", err)
	}

	s.publishChange(roomID)
	return nil
}

// RemoveMember kicks a member out. Owner only; the owner cannot remove
// themselves (that is LeaveRoom).
func (s *RoomService) RemoveMember(ctx context.Context, roomID, ownerID, memberID uuid.UUID) error {
	var actualOwner uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT owner_id FROM rooms WHERE id = $1`, roomID).Scan(&actualOwner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to load room: %w", err)
	}
	if actualOwner != ownerID {
		return core.Conflictf("only the room owner can remove members")
	}
	if memberID == ownerID {
		return core.Conflictf("owner cannot remove themselves")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM room_members WHERE room_id = $1 AND user_id = $2`, roomID, memberID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}

	s.publishChange(roomID)
	return nil
}

// IsMember reports whether the user belongs to the room.
func (s *RoomService) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)`
	if err := s.db.QueryRow(ctx, query, roomID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return exists, nil
}

// RoomLeaderboard projects the room's membership joined with profile
// streaks, ordered by current streak descending with username as the
// deterministic tiebreak.
func (s *RoomService) RoomLeaderboard(ctx context.Context, roomID uuid.UUID) ([]*leaderboard.Entry, error) {
	query := `
	SELECT
		u.id AS user_id,
		u.username,
		u.current_streak
	FROM room_members m
	INNER JOIN profiles u ON u.id = m.user_id
	WHERE m.room_id = $1
	ORDER BY u.current_streak DESC, u.username ASC
	`

	rows, err := s.db.Query(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch room leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	for rows.Next() {
		entry := &leaderboard.Entry{}
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.CurrentStreak); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (s *RoomService) publishChange(roomID uuid.UUID) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRoomChange(context.Background(), roomID); err != nil {
		log.Printf("RoomService: failed to publish change for room %s: %v", roomID, err)
	}
}
