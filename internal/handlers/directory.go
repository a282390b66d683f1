package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
	"github.com/HammerMeetNail/friendsync/internal/services"
)

type DirectoryHandler struct {
	directoryService services.DirectoryServiceInterface
}

func NewDirectoryHandler(directoryService services.DirectoryServiceInterface) *DirectoryHandler {
	return &DirectoryHandler{directoryService: directoryService}
}

type MatchRequest struct {
	Phones []models.ContactKey `json:"phones"`
}

type FriendsResponse struct {
	Friends []models.Friend `json:"friends"`
}

func (h *DirectoryHandler) Match(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req MatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	friends, err := h.directoryService.MatchContacts(r.Context(), user.ID, req.Phones)
	if errors.Is(err, services.ErrInvalidPhone) {
		writeError(w, http.StatusBadRequest, "Phones must be normalized digit strings")
		return
	}
	if errors.Is(err, services.ErrTooManyPhones) {
		writeError(w, http.StatusBadRequest, "Too many phone numbers")
		return
	}
	if err != nil {
		logging.Error("Error matching contacts", map[string]interface{}{"error": err, "user_id": user.ID.String()})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, FriendsResponse{Friends: friends})
}
