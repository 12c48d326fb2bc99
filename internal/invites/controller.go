// Package invites manages the pending-invite queue and its terminal
// transitions. Accept and decline are guarded per invite id: the same
// invite cannot be acted on twice concurrently, while different invites
// proceed independently.
package invites

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/invite"
)

// Controller owns one user's invite workflow.
type Controller struct {
	store  core.Store
	userID uuid.UUID

	// onMembershipChange fires after an accepted invite, since the new
	// room membership invalidates dependent state (profile, room list).
	onMembershipChange func()

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}
	pending  []*invite.Invite
}

func NewController(store core.Store, userID uuid.UUID, onMembershipChange func()) *Controller {
	return &Controller{
		store:              store,
		userID:             userID,
		onMembershipChange: onMembershipChange,
		inflight:           make(map[uuid.UUID]struct{}),
	}
}

// List returns the user's pending invites, newest first. Entering the
// invite view also marks all notifications read; that step is
// best-effort and never blocks the listing.
func (c *Controller) List(ctx context.Context) ([]*invite.Invite, error) {
	if err := c.store.MarkAllNotificationsRead(ctx, c.userID); err != nil {
		log.Printf("invites: mark-all-read for user %s failed: %v", c.userID, err)
	}
	return c.reload(ctx)
}

// Accept transitions the invite to accepted and creates the room
// membership. Returns ErrBusy if this invite already has a command in
// flight, and ErrConflict if it is no longer pending.
func (c *Controller) Accept(ctx context.Context, inviteID uuid.UUID) ([]*invite.Invite, error) {
	return c.transition(ctx, inviteID, c.store.AcceptInvite, true)
}

// Decline transitions the invite to declined.
func (c *Controller) Decline(ctx context.Context, inviteID uuid.UUID) ([]*invite.Invite, error) {
	return c.transition(ctx, inviteID, c.store.DeclineInvite, false)
}

// Processing reports whether inviteID has a command in flight.
func (c *Controller) Processing(inviteID uuid.UUID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[inviteID]
	return ok
}

// Pending returns the last loaded invite list.
func (c *Controller) Pending() []*invite.Invite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) transition(
	ctx context.Context,
	inviteID uuid.UUID,
	cmd func(context.Context, uuid.UUID, uuid.UUID) error,
	joined bool,
) ([]*invite.Invite, error) {
	c.mu.Lock()
	if _, ok := c.inflight[inviteID]; ok {
		c.mu.Unlock()
		return nil, core.ErrBusy
	}
	c.inflight[inviteID] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, inviteID)
		c.mu.Unlock()
	}()

	if err := cmd(ctx, inviteID, c.userID); err != nil {
		return nil, err
	}

	invites, err := c.reload(ctx)
	if err != nil {
		// The transition itself went through; the stale list is the
		// lesser problem.
		log.Printf("invites: reload after transition failed: %v", err)
	}
	if joined && c.onMembershipChange != nil {
		c.onMembershipChange()
	}
	return invites, nil
}

func (c *Controller) reload(ctx context.Context) ([]*invite.Invite, error) {
	invites, err := c.store.PendingInvites(ctx, c.userID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.pending = invites
	c.mu.Unlock()
	return invites, nil
}
