package friendsync

import (
	"strings"
	"time"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

// Action is the affordance the UI offers for a row.
type Action string

const (
	ActionInvite  Action = "invite"
	ActionAdd     Action = "add"
	ActionSent    Action = "sent"
	ActionResend  Action = "resend"
	ActionRespond Action = "respond"
	ActionFriends Action = "friends"
)

type FriendView struct {
	models.Friend
	Expired bool   `json:"expired"`
	Action  Action `json:"action"`
}

// Filter narrows a snapshot for display. The zero Filter matches everything.
type Filter struct {
	Query    string
	Statuses []models.FriendStatus
}

func (flt Filter) Matches(f models.Friend) bool {
	if len(flt.Statuses) > 0 {
		found := false
		for _, s := range flt.Statuses {
			if s == f.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	q := strings.ToLower(strings.TrimSpace(flt.Query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(f.DisplayName), q) || strings.Contains(strings.ToLower(f.Nickname), q) {
		return true
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, q)
	return digits != "" && strings.Contains(string(f.ContactKey), digits)
}

func (l Lifecycle) View(f models.Friend, now time.Time) FriendView {
	v := FriendView{Friend: f}
	switch f.Status {
	case models.FriendStatusNone:
		v.Action = ActionAdd
	case models.FriendStatusSent:
		v.Expired = l.IsExpired(f, now)
		v.Action = ActionSent
		if v.Expired {
			v.Action = ActionResend
		}
	case models.FriendStatusPendingIncoming:
		v.Action = ActionRespond
	case models.FriendStatusAccepted:
		v.Action = ActionFriends
	default:
		v.Action = ActionInvite
	}
	return v
}

// BuildView derives display rows from a snapshot. Expiry is computed here on every
// call; the snapshot itself is left untouched.
func BuildView(snap Snapshot, l Lifecycle, now time.Time, filter Filter) []FriendView {
	out := make([]FriendView, 0, len(snap.Friends))
	for _, f := range snap.Friends {
		if !filter.Matches(f) {
			continue
		}
		out = append(out, l.View(f, now))
	}
	return out
}
