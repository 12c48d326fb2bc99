package invites

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/dailylog"
	"monkArenaAPI/internal/types/invite"
	"monkArenaAPI/internal/types/leaderboard"
	"monkArenaAPI/internal/types/profile"
)

// fakeStore keeps invites in memory and enforces the same terminality
// rule as the SQL layer: only a pending invite may transition.
type fakeStore struct {
	mu      sync.Mutex
	invites map[uuid.UUID]*invite.Invite

	markReadErr error
	markReads   int
	reloadErr   error

	// transitionStarted/transitionRelease let a test hold a transition
	// open to exercise the per-invite guard.
	transitionStarted chan struct{}
	transitionRelease chan struct{}
}

func newFakeStore(pending ...*invite.Invite) *fakeStore {
	f := &fakeStore{invites: make(map[uuid.UUID]*invite.Invite)}
	for _, in := range pending {
		f.invites[in.ID] = in
	}
	return f
}

func (f *fakeStore) PendingInvites(_ context.Context, _ uuid.UUID) ([]*invite.Invite, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reloadErr != nil {
		return nil, f.reloadErr
	}
	var out []*invite.Invite
	for _, in := range f.invites {
		if in.Status == invite.StatusPending {
			cp := *in
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) AcceptInvite(_ context.Context, inviteID, _ uuid.UUID) error {
	return f.transition(inviteID, invite.StatusAccepted)
}

func (f *fakeStore) DeclineInvite(_ context.Context, inviteID, _ uuid.UUID) error {
	return f.transition(inviteID, invite.StatusDeclined)
}

func (f *fakeStore) transition(inviteID uuid.UUID, to invite.Status) error {
	if f.transitionStarted != nil {
		f.transitionStarted <- struct{}{}
		<-f.transitionRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.invites[inviteID]
	if !ok {
		return core.ErrNotFound
	}
	if in.Status != invite.StatusPending {
		return core.Conflictf("invite is not pending (status %s)", in.Status)
	}
	in.Status = to
	return nil
}

func (f *fakeStore) MarkAllNotificationsRead(context.Context, uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return f.markReadErr
}

func (f *fakeStore) GetProfile(context.Context, uuid.UUID) (*profile.Profile, error) {
	return nil, core.ErrNotFound
}

func (f *fakeStore) GetTodayLog(context.Context, uuid.UUID) (*dailylog.Log, error) {
	return nil, nil
}

func (f *fakeStore) ConfirmStreak(context.Context, uuid.UUID) error { return nil }
func (f *fakeStore) ResetStreak(context.Context, uuid.UUID) error   { return nil }

func (f *fakeStore) RoomLeaderboard(context.Context, uuid.UUID) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func pendingInvite(name string) *invite.Invite {
	return &invite.Invite{
		ID:        uuid.New(),
		RoomID:    uuid.New(),
		RoomName:  name,
		Status:    invite.StatusPending,
		CreatedAt: time.Now(),
	}
}

func TestListMarksNotificationsRead(t *testing.T) {
	store := newFakeStore(pendingInvite("night owls"))
	c := NewController(store, uuid.New(), nil)

	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, store.markReads)
}

func TestListSurvivesMarkReadFailure(t *testing.T) {
	store := newFakeStore(pendingInvite("night owls"))
	store.markReadErr = errors.New("notifications table locked")
	c := NewController(store, uuid.New(), nil)

	// Mark-all-read is best-effort; the listing must still come back.
	got, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAcceptRemovesFromPendingAndFiresMembershipChange(t *testing.T) {
	in := pendingInvite("night owls")
	other := pendingInvite("early birds")
	store := newFakeStore(in, other)

	var membershipChanges int
	c := NewController(store, uuid.New(), func() { membershipChanges++ })

	got, err := c.Accept(context.Background(), in.ID)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)
	assert.Equal(t, invite.StatusAccepted, store.invites[in.ID].Status)
	assert.Equal(t, 1, membershipChanges)
}

func TestDeclineDoesNotFireMembershipChange(t *testing.T) {
	in := pendingInvite("night owls")
	store := newFakeStore(in)

	var membershipChanges int
	c := NewController(store, uuid.New(), func() { membershipChanges++ })

	got, err := c.Decline(context.Background(), in.ID)
	require.NoError(t, err)

	assert.Empty(t, got)
	assert.Equal(t, invite.StatusDeclined, store.invites[in.ID].Status)
	assert.Zero(t, membershipChanges)
}

func TestTransitionOnTerminalInviteIsConflict(t *testing.T) {
	in := pendingInvite("night owls")
	store := newFakeStore(in)
	c := NewController(store, uuid.New(), nil)

	_, err := c.Decline(context.Background(), in.ID)
	require.NoError(t, err)

	_, err = c.Accept(context.Background(), in.ID)
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))
	assert.Equal(t, invite.StatusDeclined, store.invites[in.ID].Status)
}

func TestTransitionOnUnknownInviteIsNotFound(t *testing.T) {
	store := newFakeStore()
	c := NewController(store, uuid.New(), nil)

	_, err := c.Accept(context.Background(), uuid.New())
	require.Error(t, err)
	assert.True(t, core.IsNotFound(err))
}

func TestConcurrentCommandsOnSameInviteAreRejected(t *testing.T) {
	in := pendingInvite("night owls")
	store := newFakeStore(in)
	store.transitionStarted = make(chan struct{})
	store.transitionRelease = make(chan struct{})

	c := NewController(store, uuid.New(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Accept(context.Background(), in.ID)
		assert.NoError(t, err)
	}()

	<-store.transitionStarted
	require.True(t, c.Processing(in.ID))

	// Second command on the same invite while the first is in flight.
	_, err := c.Decline(context.Background(), in.ID)
	require.Error(t, err)
	assert.True(t, core.IsBusy(err))

	close(store.transitionRelease)
	<-done
	assert.False(t, c.Processing(in.ID))
}

func TestCommandsOnDifferentInvitesProceedIndependently(t *testing.T) {
	first := pendingInvite("night owls")
	second := pendingInvite("early birds")
	store := newFakeStore(first, second)
	store.transitionStarted = make(chan struct{})
	store.transitionRelease = make(chan struct{})

	c := NewController(store, uuid.New(), nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Accept(context.Background(), first.ID)
	}()

	<-store.transitionStarted
	require.True(t, c.Processing(first.ID))
	assert.False(t, c.Processing(second.ID), "the guard is per invite, not global")

	close(store.transitionRelease)
	<-done
}

func TestReloadFailureAfterTransitionIsNotAnError(t *testing.T) {
	in := pendingInvite("night owls")
	store := newFakeStore(in)
	c := NewController(store, uuid.New(), nil)

	store.reloadErr = errors.New("connection reset")
	got, err := c.Accept(context.Background(), in.ID)

	// The transition itself went through; a stale list is tolerable.
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Equal(t, invite.StatusAccepted, store.invites[in.ID].Status)
}
