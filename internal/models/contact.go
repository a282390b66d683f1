package models

import (
	"time"

	"github.com/google/uuid"
)

// RawContact is an entry as read from the device address book.
type RawContact struct {
	Name      string `json:"name,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
	Phone     string `json:"phone"`
	AvatarRef string `json:"avatar_ref,omitempty"`
}

// SMSInvite records an out-of-band invitation to an unregistered phone.
type SMSInvite struct {
	ID            uuid.UUID  `json:"id"`
	InviterUserID uuid.UUID  `json:"inviter_user_id"`
	Phone         ContactKey `json:"phone"`
	CreatedAt     time.Time  `json:"created_at"`
}
