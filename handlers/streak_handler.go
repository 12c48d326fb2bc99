package handlers

import (
	"context"
	"net/http"
	"time"

	"monkArenaAPI/internal/streak"
	"monkArenaAPI/middleware"
	"monkArenaAPI/services"
)

type StreakHandler struct {
	engines        *streak.Registry
	profileService *services.ProfileService
}

func NewStreakHandler(engines *streak.Registry, profileService *services.ProfileService) *StreakHandler {
	return &StreakHandler{
		engines:        engines,
		profileService: profileService,
	}
}

// GetDashboard re-derives the effective streak state for the viewer.
func (h *StreakHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	state, err := h.engines.For(userID).Refresh(ctx)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, state)
}

// ConfirmStreak runs the confirm command. A second confirm on the same
// day is a 409 and changes nothing; a second request while one is in
// flight is rejected outright.
func (h *StreakHandler) ConfirmStreak(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	state, err := h.engines.For(userID).Confirm(ctx)
	if err != nil {
		middleware.RecordStreakCommand("confirm", "error")
		respondWithCoreError(w, err)
		return
	}

	middleware.RecordStreakCommand("confirm", "ok")
	respondWithJSON(w, http.StatusOK, state)
}

// Relapse runs the relapse command and returns the re-derived state.
func (h *StreakHandler) Relapse(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	state, err := h.engines.For(userID).Relapse(ctx)
	if err != nil {
		middleware.RecordStreakCommand("relapse", "error")
		respondWithCoreError(w, err)
		return
	}

	middleware.RecordStreakCommand("relapse", "ok")
	respondWithJSON(w, http.StatusOK, state)
}
