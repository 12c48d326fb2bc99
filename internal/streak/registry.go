package streak

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
)

// Registry hands out one engine per user so the in-flight guard holds
// across requests, not just within one.
type Registry struct {
	store core.Store
	loc   *time.Location

	mu      sync.Mutex
	engines map[uuid.UUID]*Engine
}

func NewRegistry(store core.Store, loc *time.Location) *Registry {
	return &Registry{
		store:   store,
		loc:     loc,
		engines: make(map[uuid.UUID]*Engine),
	}
}

func (r *Registry) For(userID uuid.UUID) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[userID]
	if !ok {
		e = NewEngine(r.store, userID, r.loc)
		r.engines[userID] = e
	}
	return e
}
