// Package directory is the client side of the remote user directory and social endpoints.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

var (
	ErrNetworkUnavailable = errors.New("directory unavailable")
	ErrUnauthorized       = errors.New("not authorized")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidInput       = errors.New("invalid input")

	// ErrRateLimited is a transient network failure: the same call succeeds later.
	ErrRateLimited = fmt.Errorf("%w: rate limited", ErrNetworkUnavailable)
)

// IsTransient reports whether retrying the same call may succeed.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNetworkUnavailable)
}

// Client is a stateless request/response wrapper around the directory. Every failure
// is returned to the caller.
type Client interface {
	MatchContacts(ctx context.Context, keys []models.ContactKey) ([]models.Friend, error)
	ListFriends(ctx context.Context) ([]models.Friend, error)
	ListIncomingRequests(ctx context.Context) ([]models.IncomingRequest, error)
	SendRequest(ctx context.Context, userID uuid.UUID) (*models.FriendRequest, error)
	RespondToRequest(ctx context.Context, requestID uuid.UUID, accept bool) error
	Invite(ctx context.Context, phone models.ContactKey) error
}
