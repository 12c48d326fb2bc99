package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/clerk/clerk-sdk-go/v2/jwt"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"monkArenaAPI/internal/core"
	"monkArenaAPI/internal/roomsync"
	"monkArenaAPI/internal/types/room"
	"monkArenaAPI/middleware"
	"monkArenaAPI/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type RoomHandler struct {
	roomService    *services.RoomService
	profileService *services.ProfileService
	store          core.Store
	notifier       core.Notifier
}

func NewRoomHandler(roomService *services.RoomService, profileService *services.ProfileService, store core.Store, notifier core.Notifier) *RoomHandler {
	return &RoomHandler{
		roomService:    roomService,
		profileService: profileService,
		store:          store,
		notifier:       notifier,
	}
}

func (h *RoomHandler) GetMyRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	rooms, err := h.roomService.MyRooms(ctx, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, rooms)
}

func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	var req room.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Room name is required")
		return
	}

	created, err := h.roomService.CreateRoom(ctx, userID, req.Name)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

// LeaveRoom removes the caller from the room; if the caller owns it the
// room is deleted for everyone.
func (h *RoomHandler) LeaveRoom(w http.ResponseWriter, r *http.Request) {
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

	if err := h.roomService.LeaveRoom(ctx, roomID, userID); err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *RoomHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
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

	memberID, err := uuid.Parse(mux.Vars(r)["memberID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid member id")
		return
	}

	if err := h.roomService.RemoveMember(ctx, roomID, userID, memberID); err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// GetRoomLeaderboard is the one-shot (non-live) leaderboard fetch.
func (h *RoomHandler) GetRoomLeaderboard(w http.ResponseWriter, r *http.Request) {
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

	isMember, err := h.roomService.IsMember(ctx, roomID, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	if !isMember {
		respondWithError(w, http.StatusForbidden, "Not a member of this room")
		return
	}

	entries, err := h.roomService.RoomLeaderboard(ctx, roomID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	roomsync.Rank(entries)

	respondWithJSON(w, http.StatusOK, entries)
}

// RoomFeed upgrades to a websocket and streams leaderboard snapshots
// until the client disconnects. Auth rides in as a query parameter
// because browsers cannot set headers on websocket dials.
func (h *RoomHandler) RoomFeed(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondWithError(w, http.StatusUnauthorized, "Missing token")
		return
	}

	claims, err := jwt.Verify(r.Context(), &jwt.VerifyParams{Token: token})
	if err != nil {
		respondWithError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, err := h.profileService.ResolveClerkID(ctx, claims.Subject)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	roomID, ok := parseRoomID(w, r)
	if !ok {
		return
	}

	isMember, err := h.roomService.IsMember(ctx, roomID, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}
	if !isMember {
		respondWithError(w, http.StatusForbidden, "Not a member of this room")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("RoomFeed: could not upgrade connection: %v", err)
		return
	}

	client := services.NewRoomFeedClient(conn, h.store, h.notifier, roomID)

	go client.WritePump()

	if err := client.Start(context.Background()); err != nil {
		log.Printf("RoomFeed: initial load for room %s failed: %v", roomID, err)
		conn.Close()
		return
	}

	middleware.RecordRoomFeedConnect()
	go func() {
		client.ReadPump()
		middleware.RecordRoomFeedDisconnect()
	}()
}

func parseRoomID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	roomID, err := uuid.Parse(mux.Vars(r)["roomID"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid room id")
		return uuid.Nil, false
	}
	return roomID, true
}
