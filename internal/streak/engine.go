// Package streak derives the user-visible streak state from the stored
// counters plus today's log entry, and issues the confirm/relapse
// commands. The engine never mutates state optimistically: the shown
// streak only changes after a successful command and re-fetch, so a
// failed command leaves the previous (correct) state on screen.
package streak

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/dates"
	"monkArenaAPI/internal/types/dailylog"
	"monkArenaAPI/internal/types/profile"
)

// Status copy shown on the dashboard.
const (
	MsgRelapsedToday  = "Come back stronger tomorrow."
	MsgConfirmedToday = "Streak confirmed today."
	MsgNoStreak       = "Start your first streak."
	MsgConfirmDue     = "Confirm today to keep the streak alive."
	MsgActiveToday    = "Streak active today."
	MsgBroken         = "Streak broken. Confirm to restart."
)

// State is what the dashboard renders.
type State struct {
	EffectiveStreak int    `json:"effective_streak"`
	LongestStreak   int    `json:"longest_streak"`
	Message         string `json:"message"`
	ConfirmEnabled  bool   `json:"confirm_enabled"`
	RelapseEnabled  bool   `json:"relapse_enabled"`
	Username        string `json:"username"`
}

// Derive computes the effective state. Checks are ordered; the first
// match wins:
//  1. relapsed today
//  2. confirmed today
//  3. never confirmed
//  4. last confirmation yesterday
//  5. last confirmation today (counter already bumped, no log row)
//  6. gap of two or more days
func Derive(p *profile.Profile, todayLog *dailylog.Log, now time.Time, loc *time.Location) State {
	st := State{
		LongestStreak:  p.LongestStreak,
		Username:       p.Username,
		ConfirmEnabled: true,
		RelapseEnabled: true,
	}

	if todayLog != nil && todayLog.Status == dailylog.StatusRelapsed {
		st.Message = MsgRelapsedToday
		st.ConfirmEnabled = false
		st.RelapseEnabled = false
		return st
	}
	if todayLog != nil && todayLog.Status == dailylog.StatusConfirmed {
		st.EffectiveStreak = p.CurrentStreak
		st.Message = MsgConfirmedToday
		st.ConfirmEnabled = false
		return st
	}

	last := p.LastConfirmationDate
	switch {
	case last == nil:
		st.Message = MsgNoStreak
	case dates.SameDay(*last, dates.Yesterday(now, loc), loc):
		st.EffectiveStreak = p.CurrentStreak
		st.Message = MsgConfirmDue
	case dates.SameDay(*last, now, loc):
		st.EffectiveStreak = p.CurrentStreak
		st.Message = MsgActiveToday
		st.ConfirmEnabled = false
	default:
		st.Message = MsgBroken
	}
	return st
}

// Engine reconciles one user's streak. At most one confirm/relapse may
// be in flight at a time; a second call while busy is rejected with
// ErrBusy rather than queued.
type Engine struct {
	store  core.Store
	userID uuid.UUID
	loc    *time.Location
	now    func() time.Time

	mu    sync.Mutex
	busy  bool
	state State
}

func NewEngine(store core.Store, userID uuid.UUID, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store:  store,
		userID: userID,
		loc:    loc,
		now:    time.Now,
	}
}

// State returns the last derived state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether a confirm/relapse command is in flight.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy
}

// Refresh re-fetches the profile and today's log and re-derives the
// state. Safe to call at any time; it does not take the busy flag.
func (e *Engine) Refresh(ctx context.Context) (State, error) {
	p, err := e.store.GetProfile(ctx, e.userID)
	if err != nil {
		return e.State(), err
	}
	todayLog, err := e.store.GetTodayLog(ctx, e.userID)
	if err != nil {
		return e.State(), err
	}

	st := Derive(p, todayLog, e.now(), e.loc)

	e.mu.Lock()
	e.state = st
	e.mu.Unlock()
	return st, nil
}

// Confirm issues the confirm command and re-derives the state from the
// store. The store rejects a second confirm on the same day, so calling
// this twice never double-increments.
func (e *Engine) Confirm(ctx context.Context) (State, error) {
	return e.run(ctx, e.store.ConfirmStreak)
}

// Relapse records a relapse for today and zeroes the current streak.
// The longest streak is untouched.
func (e *Engine) Relapse(ctx context.Context) (State, error) {
	return e.run(ctx, e.store.ResetStreak)
}

func (e *Engine) run(ctx context.Context, cmd func(context.Context, uuid.UUID) error) (State, error) {
	e.mu.Lock()
	if e.busy {
		e.mu.Unlock()
		return e.state, core.ErrBusy
	}
	e.busy = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.busy = false
		e.mu.Unlock()
	}()

	if err := cmd(ctx, e.userID); err != nil {
		// Prior state stays on screen; nothing was mutated locally.
		return e.State(), err
	}
	return e.Refresh(ctx)
}
