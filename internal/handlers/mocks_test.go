package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

type mockDirectoryService struct {
	MatchContactsFunc func(ctx context.Context, viewerID uuid.UUID, phones []models.ContactKey) ([]models.Friend, error)
}

func (m *mockDirectoryService) MatchContacts(ctx context.Context, viewerID uuid.UUID, phones []models.ContactKey) ([]models.Friend, error) {
	if m.MatchContactsFunc != nil {
		return m.MatchContactsFunc(ctx, viewerID, phones)
	}
	return nil, nil
}

type mockFriendService struct {
	SendRequestFunc         func(ctx context.Context, userID, friendID uuid.UUID) (*models.FriendRequest, error)
	AcceptRequestFunc       func(ctx context.Context, userID, requestID uuid.UUID) (*models.FriendRequest, error)
	RejectRequestFunc       func(ctx context.Context, userID, requestID uuid.UUID) error
	ListFriendsFunc         func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListPendingRequestsFunc func(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error)
}

func (m *mockFriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, userID, friendID)
	}
	return &models.FriendRequest{ID: uuid.New(), SenderID: userID, ReceiverID: friendID, Status: models.FriendRequestStatusPending}, nil
}

func (m *mockFriendService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) (*models.FriendRequest, error) {
	if m.AcceptRequestFunc != nil {
		return m.AcceptRequestFunc(ctx, userID, requestID)
	}
	return &models.FriendRequest{ID: requestID, ReceiverID: userID, Status: models.FriendRequestStatusAccepted}, nil
}

func (m *mockFriendService) RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	if m.RejectRequestFunc != nil {
		return m.RejectRequestFunc(ctx, userID, requestID)
	}
	return nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error) {
	if m.ListPendingRequestsFunc != nil {
		return m.ListPendingRequestsFunc(ctx, userID)
	}
	return nil, nil
}

type mockInviteService struct {
	SendSMSInviteFunc func(ctx context.Context, inviterID uuid.UUID, phone models.ContactKey) (*models.SMSInvite, error)
}

func (m *mockInviteService) SendSMSInvite(ctx context.Context, inviterID uuid.UUID, phone models.ContactKey) (*models.SMSInvite, error) {
	if m.SendSMSInviteFunc != nil {
		return m.SendSMSInviteFunc(ctx, inviterID, phone)
	}
	return &models.SMSInvite{ID: uuid.New(), InviterUserID: inviterID, Phone: phone}, nil
}

func testUser() *models.User {
	return &models.User{ID: uuid.New(), Phone: "15550100", DisplayName: "Ada"}
}

func newJSONRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withUser(req *http.Request, user *models.User) *http.Request {
	return req.WithContext(SetUserInContext(req.Context(), user))
}
