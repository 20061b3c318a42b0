// Package handler provides HTTP handlers for the API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/convoplex/chatroom-platform/internal/middleware"
	"github.com/convoplex/chatroom-platform/internal/model"
	"github.com/convoplex/chatroom-platform/internal/service"
	"github.com/convoplex/chatroom-platform/internal/store"
	"github.com/convoplex/chatroom-platform/pkg/logger"
)

// ChatroomHandler handles chatroom endpoints.
type ChatroomHandler struct {
	service *service.ChatroomService
	logger  *logger.Logger
}

// NewChatroomHandler creates a new chatroom handler.
func NewChatroomHandler(svc *service.ChatroomService, log *logger.Logger) *ChatroomHandler {
	return &ChatroomHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/chatrooms
func (h *ChatroomHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateChatroomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateTitle(req.Title); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	chatroom, err := h.service.Create(ctx, userID, req.Title)
	if err != nil {
		h.logger.Error("failed to create chatroom", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create chatroom")
		return
	}

	writeJSON(w, http.StatusCreated, chatroom)
}

// List handles GET /api/v1/chatrooms
func (h *ChatroomHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	resp, err := h.service.List(ctx, userID)
	if err != nil {
		h.logger.Error("failed to list chatrooms", zap.Int64("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list chatrooms")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/chatrooms/:id
func (h *ChatroomHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	chatID, err := middleware.ParseChatroomID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	details, err := h.service.Details(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chatroom not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get chatroom", zap.Int64("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get chatroom")
		return
	}

	writeJSON(w, http.StatusOK, details)
}

// SendMessage handles POST /api/v1/chatrooms/:id/messages
func (h *ChatroomHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	chatID, err := middleware.ParseChatroomID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.SendMessage(ctx, userID, chatID, req.Message, middleware.GetSubscriptionExpiring(ctx))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusForbidden, "you do not have access to this chatroom")
		return
	case errors.Is(err, service.ErrQuotaExceeded):
		writeError(w, http.StatusTooManyRequests, "daily message quota exceeded")
		return
	case err != nil:
		h.logger.Error("failed to accept message",
			zap.Int64("user_id", userID), zap.Int64("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "failed to accept message")
		return
	}

	writeJSON(w, http.StatusAccepted, resp)
}

// LastMessage handles GET /api/v1/chatrooms/:id/last-message
func (h *ChatroomHandler) LastMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	chatID, err := middleware.ParseChatroomID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.service.LastMessage(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "chatroom not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get last message", zap.Int64("chat_id", chatID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to get last message")
		return
	}

	resp := model.LastMessageResponse{Message: msg}
	if msg == nil {
		resp.Note = "no system reply yet; the turn may still be processing"
	}
	writeJSON(w, http.StatusOK, resp)
}
