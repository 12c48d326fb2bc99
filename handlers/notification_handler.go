package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"monkArenaAPI/internal/types/notification"
	"monkArenaAPI/services"
)

type NotificationHandler struct {
	notificationService *services.NotificationService
	profileService      *services.ProfileService
}

func NewNotificationHandler(notificationService *services.NotificationService, profileService *services.ProfileService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		profileService:      profileService,
	}
}

func (h *NotificationHandler) GetUnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	count, err := h.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]int{"unread_count": count})
}

func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	if err := h.notificationService.MarkAllRead(ctx, userID); err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *NotificationHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	userID, ok := resolveUser(ctx, w, h.profileService)
	if !ok {
		return
	}

	var req notification.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.notificationService.RegisterDevice(ctx, userID, req); err != nil {
		respondWithCoreError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}
