package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ContactKey is a normalized phone number: digits only, country-code-qualified.
type ContactKey string

type FriendStatus string

const (
	FriendStatusNotRegistered   FriendStatus = "not_registered"
	FriendStatusNone            FriendStatus = "none"
	FriendStatusSent            FriendStatus = "sent"
	FriendStatusPendingIncoming FriendStatus = "pending_incoming"
	FriendStatusAccepted        FriendStatus = "accepted"
)

func (s FriendStatus) Valid() bool {
	switch s {
	case FriendStatusNotRegistered, FriendStatusNone, FriendStatusSent,
		FriendStatusPendingIncoming, FriendStatusAccepted:
		return true
	}
	return false
}

var (
	ErrInvalidFriendStatus   = errors.New("invalid friend status")
	ErrAcceptedUnregistered  = errors.New("accepted friend must be a registered user")
	ErrSentWithoutTimestamp  = errors.New("sent request must record when it was sent")
	ErrSentInFuture          = errors.New("sent request timestamp is in the future")
	ErrUnregisteredWithState = errors.New("unregistered contact cannot have a relationship status")
)

// Friend is one relationship candidate joined on a contact key.
type Friend struct {
	ID                  *uuid.UUID   `json:"id,omitempty"`
	ContactKey          ContactKey   `json:"contact_key"`
	DisplayName         string       `json:"display_name,omitempty"`
	Nickname            string       `json:"nickname,omitempty"`
	AvatarRef           string       `json:"avatar_ref,omitempty"`
	IsRegistered        bool         `json:"is_registered"`
	Status              FriendStatus `json:"status"`
	FriendshipRequestID *uuid.UUID   `json:"friendship_request_id,omitempty"`
	RequestSentAt       *time.Time   `json:"request_sent_at,omitempty"`
}

// UnregisteredFriend returns the placeholder record for a phone with no account.
func UnregisteredFriend(key ContactKey) Friend {
	return Friend{
		ContactKey: key,
		Status:     FriendStatusNotRegistered,
	}
}

// Validate checks the record invariants against the supplied wall clock.
func (f Friend) Validate(now time.Time) error {
	if !f.Status.Valid() {
		return ErrInvalidFriendStatus
	}
	if !f.IsRegistered && f.Status != FriendStatusNotRegistered {
		return ErrUnregisteredWithState
	}
	if f.Status == FriendStatusAccepted && (f.ID == nil || !f.IsRegistered) {
		return ErrAcceptedUnregistered
	}
	if f.Status == FriendStatusSent {
		if f.RequestSentAt == nil {
			return ErrSentWithoutTimestamp
		}
		if f.RequestSentAt.After(now) {
			return ErrSentInFuture
		}
	}
	return nil
}

type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "pending"
	FriendRequestStatusAccepted FriendRequestStatus = "accepted"
	FriendRequestStatusRejected FriendRequestStatus = "rejected"
)

// FriendRequest is the server-side request row. Clients consume it and never invent it.
type FriendRequest struct {
	ID         uuid.UUID           `json:"id"`
	SenderID   uuid.UUID           `json:"sender_id"`
	ReceiverID uuid.UUID           `json:"receiver_id"`
	Status     FriendRequestStatus `json:"status"`
	CreatedAt  time.Time           `json:"created_at"`
}

// IncomingRequest is a pending request addressed to the viewer, with the sender's profile.
type IncomingRequest struct {
	FriendRequest
	SenderPhone       ContactKey `json:"sender_phone"`
	SenderDisplayName string     `json:"sender_display_name,omitempty"`
}

// StatusFromRequest derives the viewer's side of a relationship. The sender of a
// pending request sees it as sent, the receiver sees it as pending_incoming.
func StatusFromRequest(viewerID uuid.UUID, req *FriendRequest) FriendStatus {
	if req == nil {
		return FriendStatusNone
	}
	switch req.Status {
	case FriendRequestStatusAccepted:
		return FriendStatusAccepted
	case FriendRequestStatusPending:
		if req.SenderID == viewerID {
			return FriendStatusSent
		}
		if req.ReceiverID == viewerID {
			return FriendStatusPendingIncoming
		}
	}
	return FriendStatusNone
}

// FriendFromRequest builds the viewer's Friend record for a registered user.
func FriendFromRequest(viewerID uuid.UUID, user User, req *FriendRequest) Friend {
	id := user.ID
	f := Friend{
		ID:           &id,
		ContactKey:   user.Phone,
		DisplayName:  user.DisplayName,
		AvatarRef:    user.AvatarRef,
		IsRegistered: true,
		Status:       StatusFromRequest(viewerID, req),
	}
	if req != nil && f.Status != FriendStatusNone {
		reqID := req.ID
		f.FriendshipRequestID = &reqID
		if f.Status == FriendStatusSent {
			sentAt := req.CreatedAt
			f.RequestSentAt = &sentAt
		}
	}
	return f
}
