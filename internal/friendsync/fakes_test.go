package friendsync

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/cache"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

type fakeClient struct {
	MatchContactsFunc        func(ctx context.Context, keys []models.ContactKey) ([]models.Friend, error)
	ListFriendsFunc          func(ctx context.Context) ([]models.Friend, error)
	ListIncomingRequestsFunc func(ctx context.Context) ([]models.IncomingRequest, error)
	SendRequestFunc          func(ctx context.Context, userID uuid.UUID) (*models.FriendRequest, error)
	RespondToRequestFunc     func(ctx context.Context, requestID uuid.UUID, accept bool) error
	InviteFunc               func(ctx context.Context, phone models.ContactKey) error
}

func (f *fakeClient) MatchContacts(ctx context.Context, keys []models.ContactKey) ([]models.Friend, error) {
	if f.MatchContactsFunc != nil {
		return f.MatchContactsFunc(ctx, keys)
	}
	return nil, nil
}

func (f *fakeClient) ListFriends(ctx context.Context) ([]models.Friend, error) {
	if f.ListFriendsFunc != nil {
		return f.ListFriendsFunc(ctx)
	}
	return []models.Friend{}, nil
}

func (f *fakeClient) ListIncomingRequests(ctx context.Context) ([]models.IncomingRequest, error) {
	if f.ListIncomingRequestsFunc != nil {
		return f.ListIncomingRequestsFunc(ctx)
	}
	return []models.IncomingRequest{}, nil
}

func (f *fakeClient) SendRequest(ctx context.Context, userID uuid.UUID) (*models.FriendRequest, error) {
	if f.SendRequestFunc != nil {
		return f.SendRequestFunc(ctx, userID)
	}
	return &models.FriendRequest{ID: uuid.New(), ReceiverID: userID, Status: models.FriendRequestStatusPending}, nil
}

func (f *fakeClient) RespondToRequest(ctx context.Context, requestID uuid.UUID, accept bool) error {
	if f.RespondToRequestFunc != nil {
		return f.RespondToRequestFunc(ctx, requestID, accept)
	}
	return nil
}

func (f *fakeClient) Invite(ctx context.Context, phone models.ContactKey) error {
	if f.InviteFunc != nil {
		return f.InviteFunc(ctx, phone)
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type failingStore struct{}

func (failingStore) ReadAll(ctx context.Context, keys []models.ContactKey) (map[models.ContactKey]models.Friend, error) {
	return nil, errors.New("storage unavailable")
}

func (failingStore) WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	return errors.New("storage unavailable")
}

// hookStore runs beforeWrite ahead of every write to the wrapped store.
type hookStore struct {
	cache.Store
	beforeWrite func(entries map[models.ContactKey]models.Friend)
}

func (s *hookStore) WriteAll(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	if s.beforeWrite != nil {
		s.beforeWrite(entries)
	}
	return s.Store.WriteAll(ctx, entries)
}

func quietLogger() *logging.Logger {
	return logging.New().SetOutput(io.Discard)
}

func newTestEngine(client *fakeClient, store cache.Store, clock Clock) *Engine {
	return NewEngine(client, store, WithClock(clock), WithLogger(quietLogger()))
}

func registeredFriend(key models.ContactKey, id uuid.UUID, status models.FriendStatus) models.Friend {
	userID := id
	return models.Friend{
		ID:           &userID,
		ContactKey:   key,
		IsRegistered: true,
		Status:       status,
	}
}

func withRequest(f models.Friend, reqID uuid.UUID, sentAt *time.Time) models.Friend {
	id := reqID
	f.FriendshipRequestID = &id
	f.RequestSentAt = sentAt
	return f
}

func twoContacts() []models.RawContact {
	return []models.RawContact{{Phone: "555-0101"}, {Phone: "555-0102"}}
}

func nextSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		if !ok {
			t.Fatal("snapshot stream closed")
		}
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	return Snapshot{}
}

func waitPhase(t *testing.T, ch <-chan Snapshot, phase Phase) Snapshot {
	t.Helper()
	for {
		snap := nextSnapshot(t, ch)
		if snap.Phase == phase {
			return snap
		}
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for signal")
	}
}

func waitClosed(t *testing.T, ch <-chan Snapshot) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func mustFriend(t *testing.T, snap Snapshot, key models.ContactKey) models.Friend {
	t.Helper()
	f, ok := snap.Friend(key)
	if !ok {
		t.Fatalf("contact %s missing from snapshot", key)
	}
	return f
}
