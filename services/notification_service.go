package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkArenaAPI/internal/types/notification"
)

const notifyTimeout = 5 * time.Second

// PushProvider sends a push to the user's registered devices. Satisfied
// by the FCM client; nil means pushes are simply skipped.
type PushProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

type NotificationService struct {
	db   *pgxpool.Pool
	push PushProvider
}

func NewNotificationService(db *pgxpool.Pool) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) SetPushProvider(p PushProvider) {
	s.push = p
}

// Create persists the notification and fans out a push to the user's
// devices. The push is best effort.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, typ notification.Type, title, body string) error {
	query := `
	INSERT INTO notifications (id, user_id, type, title, body, is_read, created_at)
	VALUES ($1, $2, $3, $4, $5, false, NOW())
	`

	if _, err := s.db.Exec(ctx, query, uuid.New(), userID, typ, title, body); err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.push != nil {
		tokens, err := s.deviceTokens(ctx, userID)
		if err != nil {
			log.Printf("NotificationService: failed to load device tokens: %v", err)
			return nil
		}
		if err := s.push.SendPush(ctx, tokens, title, body, map[string]any{"type": string(typ)}); err != nil {
			log.Printf("NotificationService: push failed for user %s: %v", userID, err)
		}
	}

	return nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	if err := s.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkAllRead marks every unread notification read. Marking zero rows
// is fine; this runs on every visit to the invite view.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) error {
	query := `
	UPDATE notifications
	SET is_read = true, read_at = NOW()
	WHERE user_id = $1 AND is_read = false
	`

	if _, err := s.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}

// RegisterDevice stores a push token; re-registering the same token
// just bumps its owner.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID uuid.UUID, req notification.RegisterDeviceRequest) error {
	if req.Token == "" {
		return fmt.Errorf("device token is required")
	}

	query := `
	INSERT INTO device_tokens (user_id, token, platform, created_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (token) DO UPDATE SET user_id = $1, platform = $3
	`

	if _, err := s.db.Exec(ctx, query, userID, req.Token, req.Platform); err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (s *NotificationService) deviceTokens(ctx context.Context, userID uuid.UUID) ([]notification.DeviceToken, error) {
	rows, err := s.db.Query(ctx, `SELECT user_id, token, platform FROM device_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch device tokens: %w", err)
	}
	defer rows.Close()

	var tokens []notification.DeviceToken
	for rows.Next() {
		var t notification.DeviceToken
		if err := rows.Scan(&t.UserID, &t.Token, &t.Platform); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, nil
}
