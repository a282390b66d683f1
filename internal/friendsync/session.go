package friendsync

import (
	"context"
	"errors"
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

type State string

const (
	StateIdle        State = "idle"
	StateCacheLoaded State = "cache_loaded"
	StateSyncing     State = "syncing"
	StateReconciled  State = "reconciled"
)

// Phase says what produced a snapshot.
type Phase string

const (
	PhaseCache      Phase = "cache"
	PhaseReconciled Phase = "reconciled"
	PhaseSyncFailed Phase = "sync_failed"
	PhaseLocal      Phase = "local"
)

var (
	ErrNoSession      = errors.New("no discovery session")
	ErrSessionClosed  = errors.New("discovery session closed")
	ErrUnknownContact = fmt.Errorf("%w: contact not in session", directory.ErrInvalidInput)
)

// Snapshot is an immutable view of a session's friend list, in device contact order.
type Snapshot struct {
	SessionID uint64
	State     State
	Phase     Phase
	Friends   []models.Friend
	// Err is set on PhaseSyncFailed snapshots.
	Err error
	At  time.Time
}

func (s Snapshot) Friend(key models.ContactKey) (models.Friend, bool) {
	for _, f := range s.Friends {
		if f.ContactKey == key {
			return f, true
		}
	}
	return models.Friend{}, false
}

// mutation is an optimistic change waiting for, or recently given, server confirmation.
type mutation struct {
	seq  uint64
	from models.FriendStatus
	// base is restored on failure. Reconciliation moves it to the server's value.
	base    models.Friend
	value   models.Friend
	pending bool
	// overlapsSync is set when the mutation was still in flight as a sync began.
	overlapsSync bool
}

type syncCall struct {
	done chan struct{}
	err  error
}

type deps struct {
	client    directory.Client
	store     cache.Store
	clock     Clock
	lifecycle Lifecycle
	logger    *logging.Logger
	// writeMu keeps cache writes single-writer across sessions.
	writeMu *sync.Mutex
}

// Session is one discovery pass over a device contact list.
type Session struct {
	id     uint64
	deps   deps
	logger *logging.Logger
	ctx    context.Context
	cancel context.CancelFunc
	feed   *feed

	mu        sync.Mutex
	state     State
	keys      []models.ContactKey
	contacts  map[models.ContactKey]models.RawContact
	friends   map[models.ContactKey]models.Friend
	mutations map[models.ContactKey]*mutation
	seq       uint64
	syncSeq   uint64
	syncing   *syncCall
	last      Snapshot
	closed    bool
}

func newSession(ctx context.Context, id uint64, d deps, set contacts.Set) *Session {
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		id:        id,
		deps:      d,
		logger:    d.logger.WithField("session_id", id),
		ctx:       ctx,
		cancel:    cancel,
		feed:      newFeed(),
		state:     StateIdle,
		keys:      set.Keys,
		contacts:  set.ByKey,
		friends:   make(map[models.ContactKey]models.Friend, len(set.Keys)),
		mutations: make(map[models.ContactKey]*mutation),
	}
}

func (s *Session) ID() uint64 { return s.id }

// Snapshots is the session's stream. It closes when the session does.
func (s *Session) Snapshots() <-chan Snapshot { return s.feed.out }

// Snapshot returns the most recently emitted snapshot.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// loadCache emits the stale view. A failing store degrades to placeholders.
func (s *Session) loadCache() {
	cached, err := s.deps.store.ReadAll(s.ctx, s.keys)
	if err != nil {
		s.logger.Warn("Cache read failed, showing empty snapshot", map[string]interface{}{"error": err})
		cached = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	now := s.deps.clock.Now()
	for _, key := range s.keys {
		f, ok := cached[key]
		if ok {
			if f, ok = s.checked(key, f, now); !ok {
				s.logger.Warn("Dropping invalid cache entry", map[string]interface{}{"contact": key})
			}
		}
		if !ok {
			f = s.placeholder(key)
		}
		s.friends[key] = f
	}
	s.state = StateCacheLoaded
	s.publishLocked(PhaseCache, nil)
	s.logger.Debug("Cache snapshot emitted", map[string]interface{}{
		"contacts": len(s.keys),
		"cached":   len(cached),
	})
}

// Sync runs the authoritative directory match. Calls made while one is in flight wait
// for it and share its result. A reconciled session does not sync again.
func (s *Session) Sync(ctx context.Context) error {
	s.mu.Lock()
	if call := s.syncing; call != nil {
		s.mu.Unlock()
		select {
		case <-call.done:
			return call.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.state == StateReconciled {
		s.mu.Unlock()
		return nil
	}

	call := &syncCall{done: make(chan struct{})}
	s.syncing = call
	s.state = StateSyncing
	s.syncSeq = s.seq
	for _, m := range s.mutations {
		if m.pending {
			m.overlapsSync = true
		}
	}
	keys := append([]models.ContactKey(nil), s.keys...)
	s.mu.Unlock()

	callCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	defer func() {
		stop()
		cancel()
	}()

	var results []models.Friend
	var err error
	if len(keys) > 0 {
		results, err = s.deps.client.MatchContacts(callCtx, keys)
	}

	call.err = s.finishSync(callCtx, results, err)
	close(call.done)
	return call.err
}

// finishSync applies a match result. The reconciled set reaches the cache before the
// reconciled snapshot is published. Mutations may proceed while the cache is written.
func (s *Session) finishSync(ctx context.Context, results []models.Friend, err error) error {
	s.mu.Lock()
	if s.closed {
		s.syncing = nil
		s.mu.Unlock()
		s.logger.Debug("Discarding sync result for closed session")
		return ErrSessionClosed
	}
	if err != nil {
		s.syncing = nil
		s.state = StateCacheLoaded
		s.publishLocked(PhaseSyncFailed, err)
		s.mu.Unlock()
		s.logger.Warn("Directory sync failed", map[string]interface{}{"error": err})
		return err
	}

	durable := s.reconcileLocked(results)
	if werr := s.unlockAndWriteCache(ctx, durable); werr != nil {
		s.logger.Warn("Cache write failed after sync", map[string]interface{}{"error": werr})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncing = nil
	if s.closed {
		return ErrSessionClosed
	}
	s.pruneSettledLocked()
	s.state = StateReconciled
	s.publishLocked(PhaseReconciled, nil)
	s.logger.Info("Directory sync reconciled", map[string]interface{}{
		"contacts": len(s.keys),
		"matched":  len(results),
	})
	return nil
}

// reconcileLocked applies server authority with a recency override: an optimistic
// value made during the sync window survives while the server still reports the
// status it replaced. It returns the entries safe to persist, which hold the server's
// value for keys whose mutation is still unconfirmed.
func (s *Session) reconcileLocked(results []models.Friend) map[models.ContactKey]models.Friend {
	now := s.deps.clock.Now()
	byKey := make(map[models.ContactKey]models.Friend, len(results))
	for _, f := range results {
		if _, ok := s.contacts[f.ContactKey]; !ok {
			continue
		}
		if checked, ok := s.checked(f.ContactKey, f, now); ok {
			byKey[f.ContactKey] = checked
			continue
		}
		s.logger.Warn("Ignoring invalid directory entry", map[string]interface{}{
			"contact": f.ContactKey,
			"status":  f.Status,
		})
	}

	merged := make(map[models.ContactKey]models.Friend, len(s.keys))
	durable := make(map[models.ContactKey]models.Friend, len(s.keys))
	for _, key := range s.keys {
		server, ok := byKey[key]
		if !ok {
			server = s.placeholder(key)
		}

		value, stored := server, server
		if m := s.mutations[key]; m != nil {
			inWindow := m.pending || m.overlapsSync || m.seq > s.syncSeq
			if inWindow && server.Status == m.from {
				value = m.value
				if !m.pending {
					stored = m.value
				}
			}
			if m.pending {
				m.base = server
			}
		}
		merged[key] = value
		durable[key] = stored
	}

	s.pruneSettledLocked()
	s.friends = merged
	return durable
}

func (s *Session) pruneSettledLocked() {
	for key, m := range s.mutations {
		if !m.pending {
			delete(s.mutations, key)
		}
	}
}

// checked reports whether f satisfies the record invariants. A sent time ahead of
// now is clock skew and is clamped to now.
func (s *Session) checked(key models.ContactKey, f models.Friend, now time.Time) (models.Friend, bool) {
	f.ContactKey = key
	err := f.Validate(now)
	if errors.Is(err, models.ErrSentInFuture) {
		sentAt := now
		f.RequestSentAt = &sentAt
		err = nil
	}
	if err != nil {
		return models.Friend{}, false
	}
	if f.DisplayName == "" {
		f.DisplayName = s.contacts[key].Name
	}
	return f, true
}

// SendFriendRequest sends a request to the contact at key. It is a no-op while a
// call for key is in flight or while an unexpired request is already sent.
func (s *Session) SendFriendRequest(ctx context.Context, key models.ContactKey) error {
	s.mu.Lock()
	f, err := s.lookupLocked(key)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if s.inFlightLocked(key) {
		s.mu.Unlock()
		return nil
	}
	now := s.deps.clock.Now()
	if f.Status == models.FriendStatusSent && !s.deps.lifecycle.IsExpired(f, now) {
		s.mu.Unlock()
		return nil
	}
	next, err := s.deps.lifecycle.Apply(f, EventSend, now)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	m := s.beginLocked(key, f, next)
	userID := *f.ID
	s.mu.Unlock()

	req, err := s.deps.client.SendRequest(ctx, userID)

	s.mu.Lock()
	if err != nil {
		s.rollbackLocked(key, m)
		s.mu.Unlock()
		s.logger.Warn("Friend request failed", map[string]interface{}{"contact": key, "error": err})
		return err
	}
	confirmed := m.value
	if req != nil {
		reqID := req.ID
		confirmed.FriendshipRequestID = &reqID
	}
	s.settleAndUnlock(ctx, key, m, confirmed)
	return nil
}

// RespondToRequest accepts or rejects an incoming request. Requests from people
// outside the contact list go straight to the directory with nothing to roll back.
func (s *Session) RespondToRequest(ctx context.Context, requestID uuid.UUID, accept bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	key, f, found := s.findRequestLocked(requestID)
	if !found {
		s.mu.Unlock()
		return s.deps.client.RespondToRequest(ctx, requestID, accept)
	}
	if s.inFlightLocked(key) {
		s.mu.Unlock()
		return nil
	}
	ev := EventReject
	if accept {
		ev = EventAccept
	}
	next, err := s.deps.lifecycle.Apply(f, ev, s.deps.clock.Now())
	if err != nil {
		s.mu.Unlock()
		return err
	}
	m := s.beginLocked(key, f, next)
	s.mu.Unlock()

	err = s.deps.client.RespondToRequest(ctx, requestID, accept)

	s.mu.Lock()
	if err != nil {
		s.rollbackLocked(key, m)
		s.mu.Unlock()
		s.logger.Warn("Responding to friend request failed", map[string]interface{}{
			"contact": key,
			"accept":  accept,
			"error":   err,
		})
		return err
	}
	s.settleAndUnlock(ctx, key, m, m.value)
	return nil
}

func (s *Session) lookupLocked(key models.ContactKey) (models.Friend, error) {
	if s.closed {
		return models.Friend{}, ErrSessionClosed
	}
	f, ok := s.friends[key]
	if !ok {
		return models.Friend{}, fmt.Errorf("%w: %s", ErrUnknownContact, key)
	}
	return f, nil
}

func (s *Session) findRequestLocked(requestID uuid.UUID) (models.ContactKey, models.Friend, bool) {
	for _, key := range s.keys {
		f := s.friends[key]
		if f.FriendshipRequestID != nil && *f.FriendshipRequestID == requestID {
			return key, f, true
		}
	}
	return "", models.Friend{}, false
}

func (s *Session) inFlightLocked(key models.ContactKey) bool {
	m := s.mutations[key]
	return m != nil && m.pending
}

func (s *Session) beginLocked(key models.ContactKey, from, next models.Friend) *mutation {
	s.seq++
	m := &mutation{
		seq:     s.seq,
		from:    from.Status,
		base:    from,
		value:   next,
		pending: true,
	}
	s.mutations[key] = m
	s.friends[key] = next
	s.publishLocked(PhaseLocal, nil)
	return m
}

func (s *Session) rollbackLocked(key models.ContactKey, m *mutation) {
	if s.mutations[key] == m {
		delete(s.mutations, key)
	}
	if s.closed {
		return
	}
	s.friends[key] = m.base
	s.publishLocked(PhaseLocal, nil)
}

// settleAndUnlock records a confirmed mutation and writes it through to the cache
// after releasing s.mu. A session closed meanwhile still persists the server's answer.
func (s *Session) settleAndUnlock(ctx context.Context, key models.ContactKey, m *mutation, confirmed models.Friend) {
	m.pending = false
	m.value = confirmed
	// Nothing left in this session to reconcile against.
	if s.state == StateReconciled && s.mutations[key] == m {
		delete(s.mutations, key)
	}
	if !s.closed {
		s.friends[key] = confirmed
		s.publishLocked(PhaseLocal, nil)
	}

	if err := s.unlockAndWriteCache(ctx, map[models.ContactKey]models.Friend{key: confirmed}); err != nil {
		s.logger.Warn("Cache write failed after mutation", map[string]interface{}{"contact": key, "error": err})
	}
}

// unlockAndWriteCache must be called with s.mu held and returns with it released.
// The store lock is taken first, so writes land in the order their entries were
// captured while no reader waits on storage.
func (s *Session) unlockAndWriteCache(ctx context.Context, entries map[models.ContactKey]models.Friend) error {
	s.deps.writeMu.Lock()
	s.mu.Unlock()
	defer s.deps.writeMu.Unlock()
	return s.deps.store.WriteAll(context.WithoutCancel(ctx), entries)
}

func (s *Session) placeholder(key models.ContactKey) models.Friend {
	f := models.UnregisteredFriend(key)
	if c, ok := s.contacts[key]; ok {
		f.DisplayName = c.Name
		f.Nickname = c.Nickname
		f.AvatarRef = c.AvatarRef
	}
	return f
}

func (s *Session) publishLocked(phase Phase, err error) {
	snap := Snapshot{
		SessionID: s.id,
		State:     s.state,
		Phase:     phase,
		Friends:   make([]models.Friend, 0, len(s.keys)),
		Err:       err,
		At:        s.deps.clock.Now(),
	}
	for _, key := range s.keys {
		snap.Friends = append(snap.Friends, s.friends[key])
	}
	s.last = snap
	s.feed.publish(snap)
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.feed.close()
}
