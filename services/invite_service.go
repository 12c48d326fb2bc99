package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/invite"
	"monkArenaAPI/internal/types/notification"
)

type InviteService struct {
	db            *pgxpool.Pool
	notifications *NotificationService
	events        RoomEventSink
}

func NewInviteService(db *pgxpool.Pool, notifications *NotificationService, events RoomEventSink) *InviteService {
	return &InviteService{db: db, notifications: notifications, events: events}
}

// InviteToRoom creates a pending invite. Only members can invite, you
// cannot invite an existing member, and a second pending invite for the
// same (room, user) pair is a conflict.
func (s *InviteService) InviteToRoom(ctx context.Context, roomID, inviterID, inviteeID uuid.UUID) (*invite.Invite, error) {
	var inviterIsMember, inviteeIsMember bool
	query := `
	SELECT
		EXISTS(SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2),
		EXISTS(SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $3)
	`
	if err := s.db.QueryRow(ctx, query, roomID, inviterID, inviteeID).Scan(&inviterIsMember, &inviteeIsMember); err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}
	if !inviterIsMember {
		return nil, core.Conflictf("only room members can invite")
	}
	if inviteeIsMember {
		return nil, core.Conflictf("user is already a member")
	}

	inv := &invite.Invite{
		ID:        uuid.New(),
		RoomID:    roomID,
		InviteeID: inviteeID,
		Status:    invite.StatusPending,
	}

	insertQuery := `
	INSERT INTO room_invites (id, room_id, invitee_id, status, created_at)
	VALUES ($1, $2, $3, 'pending', NOW())
	RETURNING created_at, (SELECT name FROM rooms WHERE id = $2)
	`
	err := s.db.QueryRow(ctx, insertQuery, inv.ID, roomID, inviteeID).Scan(&inv.CreatedAt, &inv.RoomName)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, core.Conflictf("user already has a pending invite")
		}
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	s.notifyInvitee(inv)
	return inv, nil
}

// PendingInvites lists the user's pending invites, newest first, with
// the room name joined in.
func (s *InviteService) PendingInvites(ctx context.Context, userID uuid.UUID) ([]*invite.Invite, error) {
	query := `
	SELECT i.id, i.room_id, r.name, i.invitee_id, i.status, i.created_at
	FROM room_invites i
	INNER JOIN rooms r ON r.id = i.room_id
	WHERE i.invitee_id = $1 AND i.status = 'pending'
	ORDER BY i.created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invites: %w", err)
	}
	defer rows.Close()

	var invites []*invite.Invite
	for rows.Next() {
		inv := &invite.Invite{}
		if err := rows.Scan(&inv.ID, &inv.RoomID, &inv.RoomName, &inv.InviteeID, &inv.Status, &inv.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, inv)
	}

	return invites, nil
}

// AcceptInvite flips the invite to accepted and creates the membership
// in the same transaction. The guarded UPDATE only matches pending
// rows, so an already-terminal invite comes back as a conflict and its
// status never changes.
func (s *InviteService) AcceptInvite(ctx context.Context, inviteID, userID uuid.UUID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var roomID uuid.UUID
	updateQuery := `
	UPDATE room_invites
	SET status = 'accepted'
	WHERE id = $1 AND invitee_id = $2 AND status = 'pending'
	RETURNING room_id
	`
	err = tx.QueryRow(ctx, updateQuery, inviteID, userID).Scan(&roomID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s.pendingConflict(ctx, inviteID, userID)
		}
		return fmt.Errorf("failed to accept invite: %w", err)
	}

	memberQuery := `
	INSERT INTO room_members (room_id, user_id, joined_at)
	VALUES ($1, $2, NOW())
	ON CONFLICT (room_id, user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, memberQuery, roomID, userID); err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit accept: %w", err)
	}

	if s.events != nil {
		if err := s.events.PublishRoomChange(context.Background(), roomID); err != nil {
			log.Printf("InviteService: failed to publish change for room %s: %v", roomID, err)
		}
	}
	return nil
}

// DeclineInvite flips the invite to declined. Same pending-only guard
// as AcceptInvite.
func (s *InviteService) DeclineInvite(ctx context.Context, inviteID, userID uuid.UUID) error {
	query := `
	UPDATE room_invites
	SET status = 'declined'
	WHERE id = $1 AND invitee_id = $2 AND status = 'pending'
	`

	tag, err := s.db.Exec(ctx, query, inviteID, userID)
	if err != nil {
		return fmt.Errorf("failed to decline invite: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.pendingConflict(ctx, inviteID, userID)
	}
	return nil
}

// pendingConflict tells apart "invite does not exist" from "invite is
// already terminal" after a guarded update matched nothing.
func (s *InviteService) pendingConflict(ctx context.Context, inviteID, userID uuid.UUID) error {
	var status invite.Status
	err := s.db.QueryRow(ctx,
		`SELECT status FROM room_invites WHERE id = $1 AND invitee_id = $2`,
		inviteID, userID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ErrNotFound
		}
		return fmt.Errorf("failed to check invite: %w", err)
	}
	return core.Conflictf("invite is not pending (status %s)", status)
}

func (s *InviteService) notifyInvitee(inv *invite.Invite) {
	if s.notifications == nil {
		return
	}
	// Best effort; the invite stands even if the notification fails.
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	err := s.notifications.Create(ctx, inv.InviteeID, notification.TypeInviteReceived,
		"Room invitation",
		fmt.Sprintf("You were invited to join %q", inv.RoomName),
	)
	if err != nil {
		log.Printf("InviteService: failed to notify invitee %s: %v", inv.InviteeID, err)
	}
}
