package friendsync

import (
	"fmt"
	"time"

	"github.com/HammerMeetNail/friendsync/internal/directory"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

// DefaultExpiryWindow is how long a sent request shows as "sent" before the UI offers a resend.
const DefaultExpiryWindow = 24 * time.Hour

type Event string

const (
	EventSend   Event = "send"
	EventAccept Event = "accept"
	EventReject Event = "reject"
)

var ErrInvalidTransition = fmt.Errorf("%w: transition not allowed", directory.ErrInvalidInput)

// Lifecycle is the per-relationship state machine. Accepted is terminal. Rejecting an
// incoming request returns to none; the rejected request is not kept.
type Lifecycle struct {
	ExpiryWindow time.Duration
}

func (l Lifecycle) window() time.Duration {
	if l.ExpiryWindow <= 0 {
		return DefaultExpiryWindow
	}
	return l.ExpiryWindow
}

// IsExpired is derived on every call and never changes the stored status.
func (l Lifecycle) IsExpired(f models.Friend, now time.Time) bool {
	if f.Status != models.FriendStatusSent || f.RequestSentAt == nil {
		return false
	}
	return now.Sub(*f.RequestSentAt) > l.window()
}

// Apply returns the record after ev, or ErrInvalidTransition. Sending again is only
// allowed once the previous request has expired.
func (l Lifecycle) Apply(f models.Friend, ev Event, now time.Time) (models.Friend, error) {
	next := f
	switch ev {
	case EventSend:
		if !f.IsRegistered || f.ID == nil {
			return f, fmt.Errorf("%w: %s is not registered", ErrInvalidTransition, f.ContactKey)
		}
		switch f.Status {
		case models.FriendStatusNone:
		case models.FriendStatusSent:
			if !l.IsExpired(f, now) {
				return f, fmt.Errorf("%w: request to %s already sent", ErrInvalidTransition, f.ContactKey)
			}
		default:
			return f, fmt.Errorf("%w: cannot send from %s", ErrInvalidTransition, f.Status)
		}
		sentAt := now
		next.Status = models.FriendStatusSent
		next.RequestSentAt = &sentAt
		next.FriendshipRequestID = nil

	case EventAccept:
		if f.Status != models.FriendStatusPendingIncoming || f.ID == nil {
			return f, fmt.Errorf("%w: cannot accept from %s", ErrInvalidTransition, f.Status)
		}
		next.Status = models.FriendStatusAccepted
		next.RequestSentAt = nil

	case EventReject:
		if f.Status != models.FriendStatusPendingIncoming {
			return f, fmt.Errorf("%w: cannot reject from %s", ErrInvalidTransition, f.Status)
		}
		next.Status = models.FriendStatusNone
		next.FriendshipRequestID = nil
		next.RequestSentAt = nil

	default:
		return f, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, ev)
	}
	return next, nil
}
