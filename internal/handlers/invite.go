package handlers

import (
	"errors"
	"net/http"

	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
	"github.com/HammerMeetNail/friendsync/internal/services"
	"github.com/HammerMeetNail/friendsync/internal/sms"
)

type InviteHandler struct {
	inviteService services.InviteServiceInterface
}

func NewInviteHandler(inviteService services.InviteServiceInterface) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

type SMSInviteRequest struct {
	Phone models.ContactKey `json:"phone"`
}

type SMSInviteResponse struct {
	Invite *models.SMSInvite `json:"invite"`
}

func (h *InviteHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req SMSInviteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	invite, err := h.inviteService.SendSMSInvite(r.Context(), user.ID, req.Phone)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "Phone must be a normalized digit string")
		return
	case errors.Is(err, services.ErrPhoneRegistered):
		writeError(w, http.StatusConflict, "Phone already belongs to a user")
		return
	case errors.Is(err, services.ErrInviteThrottled):
		writeError(w, http.StatusConflict, "Invite already sent to this phone recently")
		return
	case errors.Is(err, sms.ErrSendFailed):
		logging.Warn("SMS invite delivery failed", map[string]interface{}{"error": err})
		writeError(w, http.StatusBadGateway, "Could not deliver invite")
		return
	default:
		logging.Error("Error sending SMS invite", map[string]interface{}{"error": err})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusAccepted, SMSInviteResponse{Invite: invite})
}
