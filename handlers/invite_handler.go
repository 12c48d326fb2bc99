package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"monkArenaAPI/internal/invites"
	"monkArenaAPI/internal/types/invite"
	"monkArenaAPI/middleware"
	"monkArenaAPI/services"
)

type InviteHandler struct {
	controllers    *invites.Registry
	inviteService  *services.InviteService
	profileService *services.ProfileService
}

func NewInviteHandler(controllers *invites.Registry, inviteService *services.InviteService, profileService *services.ProfileService) *InviteHandler {
	return &InviteHandler{
		controllers:    controllers,
		inviteService:  inviteService,
		profileService: profileService,
	}
}

// ListInvites returns the caller's pending invites, newest first, and
// marks their notifications read along the way.
func (h *InviteHandler) ListInvites(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	pending, err := h.controllers.For(userID).List(ctx)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	if pending == nil {
		pending = []*invite.Invite{}
	}

	respondWithJSON(w, http.StatusOK, pending)
}

func (h *InviteHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "accept")
}

func (h *InviteHandler) DeclineInvite(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "decline")
}

func (h *InviteHandler) transition(w http.ResponseWriter, r *http.Request, action string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	inviteID, err := uuid.Parse(mux.Vars(r)["inviteID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid invite id")
		return
	}

	ctrl := h.controllers.For(userID)

	var pending []*invite.Invite
	if action == "accept" {
		pending, err = ctrl.Accept(ctx, inviteID)
	} else {
		pending, err = ctrl.Decline(ctx, inviteID)
	}
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	if pending == nil {
		pending = []*invite.Invite{}
	}

	middleware.RecordInviteTransition(action)
	respondWithJSON(w, http.StatusOK, pending)
}

// SendInvite invites a user to a room by username.
func (h *InviteHandler) SendInvite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}

	var req invite.SendInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" {
		respondWithError(w, http.StatusBadRequest, "Username is required")
		return
	}

	invitee, err := h.profileService.GetProfileByUsername(ctx, req.Username)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	if invitee.ID == userID {
		respondWithError(w, http.StatusConflict, "You cannot invite yourself")
		return
	}

	created, err := h.inviteService.InviteToRoom(ctx, roomID, userID, invitee.ID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}
