// Package friendsync reconciles a device contact list against the user directory.
//
// A discovery session first emits whatever the local cache knows, then matches the
// contacts against the directory in the background and emits the reconciled list.
// Friend request actions apply optimistically and roll back if the directory rejects
// them. Every change is published as an immutable Snapshot on the session's stream.
package friendsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/cache"
	"github.com/HammerMeetNail/friendsync/internal/contacts"
	"github.com/HammerMeetNail/friendsync/internal/directory"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.deps.clock = c }
}

func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.deps.logger = l }
}

func WithExpiryWindow(d time.Duration) Option {
	return func(e *Engine) { e.deps.lifecycle = Lifecycle{ExpiryWindow: d} }
}

// Engine owns at most one live discovery session at a time.
type Engine struct {
	deps deps

	mu      sync.Mutex
	current *Session
	nextID  uint64
}

func NewEngine(client directory.Client, store cache.Store, opts ...Option) *Engine {
	e := &Engine{
		deps: deps{
			client:    client,
			store:     store,
			clock:     SystemClock,
			lifecycle: Lifecycle{ExpiryWindow: DefaultExpiryWindow},
			logger:    logging.Default,
			writeMu:   &sync.Mutex{},
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartDiscoverySession replaces any running session. The cache snapshot is queued
// before this returns and the directory match runs in the background. The stream
// closes when the session is replaced or the engine is closed.
func (e *Engine) StartDiscoverySession(ctx context.Context, raw []models.RawContact) <-chan Snapshot {
	set := contacts.NormalizeContacts(raw)

	e.mu.Lock()
	e.nextID++
	s := newSession(ctx, e.nextID, e.deps, set)
	prev := e.current
	e.current = s
	e.mu.Unlock()

	if prev != nil {
		prev.close()
	}
	if len(set.Rejected) > 0 {
		s.logger.Debug("Skipped contacts without a usable phone number", map[string]interface{}{
			"rejected": len(set.Rejected),
		})
	}

	s.loadCache()
	go func() {
		// Failures are surfaced on the stream.
		_ = s.Sync(s.ctx)
	}()
	return s.Snapshots()
}

// Session returns the live session, or nil.
func (e *Engine) Session() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Sync retries the directory match of the live session.
func (e *Engine) Sync(ctx context.Context) error {
	s := e.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.Sync(ctx)
}

func (e *Engine) SendFriendRequest(ctx context.Context, key models.ContactKey) error {
	s := e.Session()
	if s == nil {
		return ErrNoSession
	}
	return s.SendFriendRequest(ctx, key)
}

func (e *Engine) RespondToRequest(ctx context.Context, requestID uuid.UUID, accept bool) error {
	s := e.Session()
	if s == nil {
		return e.deps.client.RespondToRequest(ctx, requestID, accept)
	}
	return s.RespondToRequest(ctx, requestID, accept)
}

// Invite asks the directory to text an invitation to an unregistered phone.
func (e *Engine) Invite(ctx context.Context, key models.ContactKey) error {
	if !contacts.IsKey(key) {
		return fmt.Errorf("%w: %q is not a normalized phone number", directory.ErrInvalidInput, key)
	}
	return e.deps.client.Invite(ctx, key)
}

// FriendsScreen is what the friends list screen shows.
type FriendsScreen struct {
	Friends  []models.Friend          `json:"friends"`
	Incoming []models.IncomingRequest `json:"incoming"`
}

func (e *Engine) LoadFriendsScreen(ctx context.Context) (*FriendsScreen, error) {
	friends, err := e.deps.client.ListFriends(ctx)
	if err != nil {
		return nil, err
	}
	incoming, err := e.deps.client.ListIncomingRequests(ctx)
	if err != nil {
		return nil, err
	}
	return &FriendsScreen{Friends: friends, Incoming: incoming}, nil
}

// View renders the live session's latest snapshot for display.
func (e *Engine) View(filter Filter) []FriendView {
	s := e.Session()
	if s == nil {
		return []FriendView{}
	}
	return BuildView(s.Snapshot(), e.deps.lifecycle, e.deps.clock.Now(), filter)
}

// Lifecycle exposes the engine's request state machine.
func (e *Engine) Lifecycle() Lifecycle {
	return e.deps.lifecycle
}

func (e *Engine) Close() {
	e.mu.Lock()
	s := e.current
	e.current = nil
	e.mu.Unlock()

	if s != nil {
		s.close()
	}
}
