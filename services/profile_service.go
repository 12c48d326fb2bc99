package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/leaderboard"
	"monkArenaAPI/internal/types/profile"
)

var usernameRegex = regexp.MustCompile(`^[a-z0-9_]{3,20}$`)

const (
	minAge = 13
	maxAge = 100
)

type ProfileService struct {
	db *pgxpool.Pool
}

func NewProfileService(db *pgxpool.Pool) *ProfileService {
	return &ProfileService{db: db}
}

// ValidateSetup checks the profile setup input before any command is
// issued. Username is lowercased and trimmed first, matching what gets
// persisted.
func ValidateSetup(username string, age int) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernameRegex.MatchString(username) {
		return "", fmt.Errorf("username must be 3-20 chars: lowercase letters, digits, underscore only")
	}
	if age < minAge || age > maxAge {
		return "", fmt.Errorf("age must be between %d and %d", minAge, maxAge)
	}
	return username, nil
}

// EnsureProfile resolves the Clerk subject to a profile id,
// provisioning a row on first sight of the account. Only a missing row
// triggers provisioning; any other resolve failure is returned as-is so
// a transient database error never races a duplicate create.
func (s *ProfileService) EnsureProfile(ctx context.Context, clerkID string) (uuid.UUID, error) {
	userID, err := s.ResolveClerkID(ctx, clerkID)
	if err == nil {
		return userID, nil
	}
	if !core.IsNotFound(err) {
		return uuid.Nil, err
	}

	p, err := s.CreateProfile(ctx, clerkID)
	if err != nil {
		return uuid.Nil, err
	}
	return p.ID, nil
}

// ResolveClerkID maps the authenticated Clerk subject to the internal
// profile id.
func (s *ProfileService) ResolveClerkID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var userID uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM profiles WHERE clerk_id = $1`, clerkID).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, core.ErrNotFound
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return userID, nil
}

func (s *ProfileService) GetProfile(ctx context.Context, userID uuid.UUID) (*profile.Profile, error) {
	query := `
	SELECT id, clerk_id, username, age, current_streak, longest_streak, last_confirmation_date, created_at, updated_at
	FROM profiles
	WHERE id = $1
	`

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
		&p.ID,
		&p.ClerkID,
		&p.Username,
		&p.Age,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastConfirmationDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return p, nil
}

// GetProfileByUsername backs the invite dialog's username lookup.
func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	query := `
	SELECT id, clerk_id, username, age, current_streak, longest_streak, last_confirmation_date, created_at, updated_at
	FROM profiles
	WHERE username = $1
	`

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query, username).Scan(
		&p.ID,
		&p.ClerkID,
		&p.Username,
		&p.Age,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastConfirmationDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get profile by username: %w", err)
	}

	return p, nil
}

// CreateProfile provisions a row for a newly authenticated account. The
// streak fields start at zero; username and age come in later through
// SetupProfile.
func (s *ProfileService) CreateProfile(ctx context.Context, clerkID string) (*profile.Profile, error) {
	query := `
	INSERT INTO profiles (id, clerk_id, username, age, created_at, updated_at)
	VALUES ($1, $2, $3, 0, NOW(), NOW())
	ON CONFLICT (clerk_id) DO NOTHING
	RETURNING id, clerk_id, username, age, current_streak, longest_streak, last_confirmation_date, created_at, updated_at
	`

	// Placeholder username until setup completes; unique per account.
	placeholder := "user_" + strings.ReplaceAll(uuid.New().String()[:8], "-", "")

	p := &profile.Profile{}
	err := s.db.QueryRow(ctx, query, uuid.New(), clerkID, placeholder).Scan(
		&p.ID,
		&p.ClerkID,
		&p.Username,
		&p.Age,
		&p.CurrentStreak,
		&p.LongestStreak,
		&p.LastConfirmationDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Row already existed; hand it back instead.
			userID, rerr := s.ResolveClerkID(ctx, clerkID)
			if rerr != nil {
				return nil, rerr
			}
			return s.GetProfile(ctx, userID)
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	return p, nil
}

// SetupProfile sets username and age. A taken username surfaces as a
// conflict, not a 500.
func (s *ProfileService) SetupProfile(ctx context.Context, userID uuid.UUID, username string, age int) (*profile.Profile, error) {
	username, err := ValidateSetup(username, age)
	if err != nil {
		return nil, err
	}

	query := `
	UPDATE profiles
	SET username = $2, age = $3, updated_at = NOW()
	WHERE id = $1
	`

	tag, err := s.db.Exec(ctx, query, userID, username, age)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, core.Conflictf("username already taken")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, core.ErrNotFound
	}

	return s.GetProfile(ctx, userID)
}

// DeleteProfileByClerkID removes the profile and everything hanging
// off it. Rooms the user owned are deleted too; cascades handle the
// memberships, logs and invites.
func (s *ProfileService) DeleteProfileByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM profiles WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

// GlobalLeaderboard returns the top profiles by current streak. Ties
// break on username ascending so the order is deterministic.
func (s *ProfileService) GlobalLeaderboard(ctx context.Context, userID uuid.UUID) (*leaderboard.Leaderboard, error) {
	query := `
	SELECT
		id AS user_id,
		username,
		current_streak,
		RANK() OVER (ORDER BY current_streak DESC) AS rank
	FROM profiles
	ORDER BY current_streak DESC, username ASC
	LIMIT 50
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []*leaderboard.Entry
	var userPosition *leaderboard.Entry

	for rows.Next() {
		entry := &leaderboard.Entry{}
		if err := rows.Scan(&entry.UserID, &entry.Username, &entry.CurrentStreak, &entry.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		entries = append(entries, entry)

		if entry.UserID == userID {
			userPosition = entry
		}
	}

	return &leaderboard.Leaderboard{
		Entries:      entries,
		UserPosition: userPosition,
		TotalUsers:   len(entries),
	}, nil
}
