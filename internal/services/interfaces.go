package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

// DirectoryServiceInterface defines the contract for contact matching.
type DirectoryServiceInterface interface {
	MatchContacts(ctx context.Context, viewerID uuid.UUID, phones []models.ContactKey) ([]models.Friend, error)
}

// FriendServiceInterface defines the contract for friend request operations.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) (*models.FriendRequest, error)
	RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error)
}

// InviteServiceInterface defines the contract for SMS invitations.
type InviteServiceInterface interface {
	SendSMSInvite(ctx context.Context, inviterID uuid.UUID, phone models.ContactKey) (*models.SMSInvite, error)
}

// AuthServiceInterface defines the contract for bearer token validation.
type AuthServiceInterface interface {
	ValidateSession(ctx context.Context, token string) (*models.User, error)
}

var (
	_ DirectoryServiceInterface = (*DirectoryService)(nil)
	_ FriendServiceInterface    = (*FriendService)(nil)
	_ InviteServiceInterface    = (*InviteService)(nil)
	_ AuthServiceInterface      = (*AuthService)(nil)
)
