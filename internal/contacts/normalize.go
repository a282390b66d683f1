// Package contacts turns device address book entries into comparable contact keys.
package contacts

import (
	"strings"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

// MinKeyLength is the shortest digit string accepted as a phone number.
const MinKeyLength = 7

// Normalize strips every non-digit character from raw. It reports false when nothing
// usable remains. Trunk prefixes are left alone; qualifying a local number with a
// country code is the caller's job.
func Normalize(raw string) (models.ContactKey, bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() < MinKeyLength {
		return "", false
	}
	return models.ContactKey(b.String()), true
}

// IsKey reports whether key is already in normalized form.
func IsKey(key models.ContactKey) bool {
	normalized, ok := Normalize(string(key))
	return ok && normalized == key
}

// Set is a batch of normalized device contacts.
type Set struct {
	// Keys in first-seen device order, without duplicates.
	Keys     []models.ContactKey
	ByKey    map[models.ContactKey]models.RawContact
	Rejected []models.RawContact
}

// NormalizeContacts normalizes a device contact list. When two entries share a key
// the first one wins.
func NormalizeContacts(raw []models.RawContact) Set {
	set := Set{
		Keys:  make([]models.ContactKey, 0, len(raw)),
		ByKey: make(map[models.ContactKey]models.RawContact, len(raw)),
	}
	for _, c := range raw {
		key, ok := Normalize(c.Phone)
		if !ok {
			set.Rejected = append(set.Rejected, c)
			continue
		}
		if _, seen := set.ByKey[key]; seen {
			continue
		}
		set.ByKey[key] = c
		set.Keys = append(set.Keys, key)
	}
	return set
}
