// Package workers holds the background maintenance routines.
package workers

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	cleanupInterval = 6 * time.Hour
	cleanupTimeout  = 5 * time.Minute

	// Terminal invites stay visible in nothing; they only feed audit
	// queries, so a month of history is plenty.
	terminalInviteRetention = "30 days"
	// Read notifications are dead weight once the unread badge no
	// longer counts them.
	readNotificationRetention = "30 days"
	// A device token that hasn't been refreshed in 90 days belongs to
	// an uninstalled app.
	staleTokenRetention = "90 days"
)

type pruneJob struct {
	what  string
	query string
}

var pruneJobs = []pruneJob{
	{"terminal invites", `
		DELETE FROM room_invites
		WHERE status IN ('accepted', 'declined')
		  AND created_at < NOW() - INTERVAL '` + terminalInviteRetention + `'`},
	{"read notifications", `
		DELETE FROM notifications
		WHERE is_read = true
		  AND read_at < NOW() - INTERVAL '` + readNotificationRetention + `'`},
	{"stale device tokens", `
		DELETE FROM device_tokens
		WHERE created_at < NOW() - INTERVAL '` + staleTokenRetention + `'`},
}

// StartCleanupWorker runs periodic pruning of terminal invites, read
// notifications and stale device tokens. Runs until the process exits.
func StartCleanupWorker(db *pgxpool.Pool) {
	ticker := time.NewTicker(cleanupInterval)

	go func() {
		for range ticker.C {
			runCleanup(db)
		}
	}()
}

func runCleanup(db *pgxpool.Pool) {
	ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancel()

	log.Println("Starting periodic cleanup...")

	for _, job := range pruneJobs {
		prune(ctx, db, job.what, job.query)
	}
}

func prune(ctx context.Context, db *pgxpool.Pool, what, query string) {
	tag, err := db.Exec(ctx, query)
	if err != nil {
		log.Printf("Cleanup of %s failed: %v", what, err)
		return
	}
	if n := tag.RowsAffected(); n > 0 {
		log.Printf("Cleanup removed %d %s", n, what)
	}
}
