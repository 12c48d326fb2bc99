// Package roomsync keeps a ranked view of one room's membership fresh.
// A controller is owned by a single room view (one websocket feed, one
// page): Load on open, Subscribe for live updates, Reset on teardown.
package roomsync

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/types/leaderboard"
)

const refreshTimeout = 5 * time.Second

// Snapshot is a complete, ordered view of the room. Partial membership
// is never published; the previous snapshot stays visible until the new
// one is ready.
type Snapshot struct {
	RoomID  uuid.UUID            `json:"room_id"`
	Entries []*leaderboard.Entry `json:"entries"`
}

type Controller struct {
	store    core.Store
	notifier core.Notifier

	// onUpdate, when set, receives every published snapshot. It is
	// called with the controller's lock held, so it must not call back
	// into the controller.
	onUpdate func(Snapshot)

	mu      sync.Mutex
	roomID  uuid.UUID
	entries []*leaderboard.Entry
	loaded  bool
	loadGen uint64
	subGen  uint64
	sub     core.Subscription
}

func NewController(store core.Store, notifier core.Notifier, onUpdate func(Snapshot)) *Controller {
	return &Controller{
		store:    store,
		notifier: notifier,
		onUpdate: onUpdate,
	}
}

// Load fetches the room's leaderboard and publishes it. A newer Load
// for the same controller supersedes any in-flight one: only the most
// recently issued call's result is ever applied, stale responses are
// dropped on arrival.
func (c *Controller) Load(ctx context.Context, roomID uuid.UUID) error {
	c.mu.Lock()
	c.loadGen++
	gen := c.loadGen
	c.roomID = roomID
	c.mu.Unlock()

	entries, err := c.store.RoomLeaderboard(ctx, roomID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.loadGen {
		// A newer load was issued while this one was in flight.
		return nil
	}
	c.publishLocked(roomID, entries)
	return nil
}

// Snapshot returns the last published view.
func (c *Controller) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{RoomID: c.roomID, Entries: c.entries}, c.loaded
}

// Subscribe opens the change feed for roomID. A controller holds at
// most one live subscription, and the same latest-wins rule as Load
// applies: the most recently issued Subscribe keeps its feed, any
// older one still connecting closes itself on arrival. Change events
// trigger a silent refresh so viewers never see an error flash for a
// background update.
func (c *Controller) Subscribe(roomID uuid.UUID) error {
	c.mu.Lock()
	c.subGen++
	gen := c.subGen
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.mu.Unlock()

	sub, err := c.notifier.SubscribeRoom(roomID, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		if err := c.Load(ctx, roomID); err != nil {
			log.Printf("roomsync: silent refresh for room %s failed: %v", roomID, err)
		}
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.subGen {
		// A newer Subscribe, Unsubscribe or Reset superseded this one
		// while it was connecting.
		c.mu.Unlock()
		sub.Close()
		return nil
	}
	c.sub = sub
	c.mu.Unlock()
	return nil
}

// Unsubscribe closes the change feed, keeping the loaded snapshot.
func (c *Controller) Unsubscribe() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subGen++ // a subscription still connecting must not install itself
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
}

// Reset releases the subscription and clears all state. Must be called
// when the room view is torn down; a dangling subscription keeps the
// event connection open and doubles up updates on the next visit.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	c.loadGen++ // any in-flight load result is now stale
	c.subGen++  // and any subscription still connecting stays out
	c.roomID = uuid.Nil
	c.entries = nil
	c.loaded = false
}

func (c *Controller) publishLocked(roomID uuid.UUID, entries []*leaderboard.Entry) {
	Rank(entries)
	c.entries = entries
	c.loaded = true
	if c.onUpdate != nil {
		c.onUpdate(Snapshot{RoomID: roomID, Entries: entries})
	}
}

// Rank orders entries by current streak descending and assigns ranks.
// The sort is stable: entries with equal streaks keep the order the
// store returned them in (username ascending).
func Rank(entries []*leaderboard.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CurrentStreak > entries[j].CurrentStreak
	})
	for i, e := range entries {
		if i > 0 && e.CurrentStreak == entries[i-1].CurrentStreak {
			e.Rank = entries[i-1].Rank
		} else {
			e.Rank = i + 1
		}
	}
}
