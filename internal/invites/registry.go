package invites

import (
	"sync"

	"github.com/google/uuid"

	"monkArenaAPI/internal/core"
)

// Registry hands out one controller per user so the per-invite guard
// spans concurrent requests.
type Registry struct {
	store core.Store

	mu          sync.Mutex
	controllers map[uuid.UUID]*Controller
}

func NewRegistry(store core.Store) *Registry {
	return &Registry{
		store:       store,
		controllers: make(map[uuid.UUID]*Controller),
	}
}

func (r *Registry) For(userID uuid.UUID) *Controller {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.controllers[userID]
	if !ok {
		c = NewController(r.store, userID, nil)
		r.controllers[userID] = c
	}
	return c
}
