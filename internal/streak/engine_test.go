package streak

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

// fakeStore is an in-memory core.Store covering the streak paths. The
// confirm/relapse commands mutate it the way the SQL layer would.
type fakeStore struct {
	mu      sync.Mutex
	profile profile.Profile
	today   *dailylog.Log

	confirmErr error
	relapseErr error

	// commandStarted/commandRelease let a test hold a command open to
	// exercise the busy guard.
	commandStarted chan struct{}
	commandRelease chan struct{}
}

func (f *fakeStore) GetProfile(_ context.Context, _ uuid.UUID) (*profile.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.profile
	return &p, nil
}

func (f *fakeStore) GetTodayLog(_ context.Context, _ uuid.UUID) (*dailylog.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.today == nil {
		return nil, nil
	}
	l := *f.today
	return &l, nil
}

func (f *fakeStore) ConfirmStreak(_ context.Context, userID uuid.UUID) error {
	f.blockIfAsked()
	if f.confirmErr != nil {
		return f.confirmErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.today != nil {
		return core.Conflictf("already logged today")
	}
	now := time.Now()
	f.today = &dailylog.Log{ID: uuid.New(), UserID: userID, LogDate: now, Status: dailylog.StatusConfirmed, LoggedAt: now}
	f.profile.CurrentStreak++
	if f.profile.CurrentStreak > f.profile.LongestStreak {
		f.profile.LongestStreak = f.profile.CurrentStreak
	}
	f.profile.LastConfirmationDate = &now
	return nil
}

func (f *fakeStore) ResetStreak(_ context.Context, userID uuid.UUID) error {
	f.blockIfAsked()
	if f.relapseErr != nil {
		return f.relapseErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	f.today = &dailylog.Log{ID: uuid.New(), UserID: userID, LogDate: now, Status: dailylog.StatusRelapsed, LoggedAt: now}
	f.profile.CurrentStreak = 0
	return nil
}

func (f *fakeStore) blockIfAsked() {
	if f.commandStarted != nil {
		f.commandStarted <- struct{}{}
		<-f.commandRelease
	}
}

func (f *fakeStore) RoomLeaderboard(context.Context, uuid.UUID) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (f *fakeStore) PendingInvites(context.Context, uuid.UUID) ([]*invite.Invite, error) {
	return nil, nil
}

func (f *fakeStore) AcceptInvite(context.Context, uuid.UUID, uuid.UUID) error  { return nil }
func (f *fakeStore) DeclineInvite(context.Context, uuid.UUID, uuid.UUID) error { return nil }
func (f *fakeStore) MarkAllNotificationsRead(context.Context, uuid.UUID) error { return nil }

func daysAgo(n int) *time.Time {
	t := time.Now().UTC().AddDate(0, 0, -n)
	return &t
}

func newTestEngine(t *testing.T, store *fakeStore) *Engine {
	t.Helper()
	return NewEngine(store, uuid.New(), time.UTC)
}

func TestDeriveRelapsedToday(t *testing.T) {
	p := &profile.Profile{Username: "monk", CurrentStreak: 0, LongestStreak: 10}
	today := &dailylog.Log{Status: dailylog.StatusRelapsed}

	st := Derive(p, today, time.Now(), time.UTC)

	assert.Equal(t, 0, st.EffectiveStreak)
	assert.Equal(t, MsgRelapsedToday, st.Message)
	assert.False(t, st.ConfirmEnabled)
	assert.False(t, st.RelapseEnabled)
	assert.Equal(t, 10, st.LongestStreak)
}

func TestDeriveConfirmedToday(t *testing.T) {
	p := &profile.Profile{Username: "monk", CurrentStreak: 6, LongestStreak: 10, LastConfirmationDate: daysAgo(0)}
	today := &dailylog.Log{Status: dailylog.StatusConfirmed}

	st := Derive(p, today, time.Now(), time.UTC)

	assert.Equal(t, 6, st.EffectiveStreak)
	assert.Equal(t, MsgConfirmedToday, st.Message)
	assert.False(t, st.ConfirmEnabled)
	assert.True(t, st.RelapseEnabled)
}

func TestDeriveNeverConfirmed(t *testing.T) {
	p := &profile.Profile{Username: "monk"}

	st := Derive(p, nil, time.Now(), time.UTC)

	assert.Equal(t, 0, st.EffectiveStreak)
	assert.Equal(t, MsgNoStreak, st.Message)
	assert.True(t, st.ConfirmEnabled)
}

func TestDeriveConfirmDue(t *testing.T) {
	// Confirmed yesterday, nothing today: the streak still counts but
	// needs confirmation.
	p := &profile.Profile{Username: "monk", CurrentStreak: 5, LongestStreak: 10, LastConfirmationDate: daysAgo(1)}

	st := Derive(p, nil, time.Now(), time.UTC)

	assert.Equal(t, 5, st.EffectiveStreak)
	assert.Equal(t, MsgConfirmDue, st.Message)
	assert.True(t, st.ConfirmEnabled)
}

func TestDeriveActiveTodayWithoutLogRow(t *testing.T) {
	// Counter already bumped for today but no log row (e.g. migrated
	// data): show the streak, disable confirm.
	p := &profile.Profile{Username: "monk", CurrentStreak: 3, LastConfirmationDate: daysAgo(0)}

	st := Derive(p, nil, time.Now(), time.UTC)

	assert.Equal(t, 3, st.EffectiveStreak)
	assert.Equal(t, MsgActiveToday, st.Message)
	assert.False(t, st.ConfirmEnabled)
}

func TestDeriveBrokenAfterGap(t *testing.T) {
	p := &profile.Profile{Username: "monk", CurrentStreak: 7, LongestStreak: 12, LastConfirmationDate: daysAgo(3)}

	st := Derive(p, nil, time.Now(), time.UTC)

	assert.Equal(t, 0, st.EffectiveStreak)
	assert.Equal(t, MsgBroken, st.Message)
	assert.True(t, st.ConfirmEnabled)
	assert.Equal(t, 12, st.LongestStreak)
}

func TestConfirmIncrementsAndRefreshes(t *testing.T) {
	store := &fakeStore{profile: profile.Profile{Username: "monk", CurrentStreak: 5, LongestStreak: 5, LastConfirmationDate: daysAgo(1)}}
	e := newTestEngine(t, store)

	st, err := e.Confirm(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, st.EffectiveStreak)
	assert.Equal(t, 6, st.LongestStreak)
	assert.Equal(t, MsgConfirmedToday, st.Message)
	assert.False(t, st.ConfirmEnabled)
}

func TestDoubleConfirmIsConflict(t *testing.T) {
	store := &fakeStore{profile: profile.Profile{Username: "monk", CurrentStreak: 5, LongestStreak: 5, LastConfirmationDate: daysAgo(1)}}
	e := newTestEngine(t, store)

	_, err := e.Confirm(context.Background())
	require.NoError(t, err)

	st, err := e.Confirm(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsConflict(err))

	// The streak never double-increments.
	assert.Equal(t, 6, st.EffectiveStreak)
	assert.Equal(t, 6, store.profile.CurrentStreak)
}

func TestRelapseKeepsLongestStreak(t *testing.T) {
	store := &fakeStore{profile: profile.Profile{Username: "monk", CurrentStreak: 4, LongestStreak: 10, LastConfirmationDate: daysAgo(1)}}
	e := newTestEngine(t, store)

	st, err := e.Relapse(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, st.EffectiveStreak)
	assert.Equal(t, 10, st.LongestStreak)
	assert.Equal(t, MsgRelapsedToday, st.Message)
	assert.False(t, st.ConfirmEnabled)
	assert.False(t, st.RelapseEnabled)
}

func TestFailedCommandLeavesPriorState(t *testing.T) {
	store := &fakeStore{profile: profile.Profile{Username: "monk", CurrentStreak: 5, LongestStreak: 9, LastConfirmationDate: daysAgo(1)}}
	e := newTestEngine(t, store)

	prior, err := e.Refresh(context.Background())
	require.NoError(t, err)
	require.Equal(t, MsgConfirmDue, prior.Message)

	store.confirmErr = errors.New("connection reset")
	st, err := e.Confirm(context.Background())
	require.Error(t, err)

	// Nothing was mutated optimistically.
	assert.Equal(t, prior, st)
	assert.Equal(t, prior, e.State())
}

func TestSecondCommandWhileBusyIsRejected(t *testing.T) {
	store := &fakeStore{
		profile:        profile.Profile{Username: "monk", CurrentStreak: 2, LongestStreak: 2, LastConfirmationDate: daysAgo(1)},
		commandStarted: make(chan struct{}),
		commandRelease: make(chan struct{}),
	}
	e := newTestEngine(t, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := e.Confirm(context.Background())
		assert.NoError(t, err)
	}()

	<-store.commandStarted
	require.True(t, e.Busy())

	_, err := e.Relapse(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsBusy(err))

	close(store.commandRelease)
	<-done
	assert.False(t, e.Busy())
}

func TestRefreshDoesNotTakeBusyFlag(t *testing.T) {
	store := &fakeStore{
		profile:        profile.Profile{Username: "monk", CurrentStreak: 2, LongestStreak: 2, LastConfirmationDate: daysAgo(1)},
		commandStarted: make(chan struct{}),
		commandRelease: make(chan struct{}),
	}
	e := newTestEngine(t, store)

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Confirm(context.Background())
	}()

	<-store.commandStarted

	// A dashboard refetch during an in-flight command must not be
	// rejected.
	_, err := e.Refresh(context.Background())
	assert.NoError(t, err)

	close(store.commandRelease)
	<-done
}
