package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"monkArenaAPI/internal/types/profile"
	"monkArenaAPI/middleware"
	"monkArenaAPI/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
	}
}

// resolveUser maps the authenticated request to the internal user id,
// provisioning a profile row on first sight of a new account.
func (h *ProfileHandler) resolveUser(ctx context.Context, w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return resolveUser(ctx, w, h.profileService)
}

func resolveUser(ctx context.Context, w http.ResponseWriter, ps *services.ProfileService) (uuid.UUID, bool) {
	clerkID, ok := middleware.GetClerkID(ctx)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "User not authenticated")
		return uuid.Nil, false
	}

	userID, err := ps.EnsureProfile(ctx, clerkID)
	if err != nil {
		respondWithCoreError(w, err)
		return uuid.Nil, false
	}
	return userID, true
}

func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := h.resolveUser(ctx, w, r)
	if !ok {
		return
	}

	p, err := h.profileService.GetProfile(ctx, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) SetupProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := h.resolveUser(ctx, w, r)
	if !ok {
		return
	}

	var req profile.SetupProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Validation errors are caught here, before any command is issued.
	if _, err := services.ValidateSetup(req.Username, req.Age); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.profileService.SetupProfile(ctx, userID, req.Username, req.Age)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, p)
}

// LookupByUsername backs the invite dialog: resolve a username to a
// profile id without exposing streak internals.
func (h *ProfileHandler) LookupByUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, ok := h.resolveUser(ctx, w, r); !ok {
		return
	}

	username := r.URL.Query().Get("username")
	if username == "" {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'username' is required")
		return
	}

	p, err := h.profileService.GetProfileByUsername(ctx, username)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"id":       p.ID,
		"username": p.Username,
	})
}

func (h *ProfileHandler) GetGlobalLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := h.resolveUser(ctx, w, r)
	if !ok {
		return
	}

	lb, err := h.profileService.GlobalLeaderboard(ctx, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, lb)
}
