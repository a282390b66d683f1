package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

// RequestRefreshAfter is how old a sender's own pending request must be before sending
// again refreshes it instead of conflicting.
const RequestRefreshAfter = 24 * time.Hour

var (
	ErrFriendshipNotFound     = errors.New("friend request not found")
	ErrFriendshipExists       = errors.New("friend request already exists")
	ErrCannotFriendSelf       = errors.New("cannot send friend request to yourself")
	ErrFriendshipNotPending   = errors.New("friend request is not pending")
	ErrNotFriendshipRecipient = errors.New("only the recipient can accept/reject")
)

const requestColumns = `id, user_id, friend_id, status, created_at`

type FriendService struct {
	db  DBConn
	now func() time.Time
}

func NewFriendService(db DBConn) *FriendService {
	return &FriendService{db: db, now: time.Now}
}

// SendRequest creates a pending request from userID to friendID. Sending again while
// the caller's own request has been pending for longer than RequestRefreshAfter bumps
// its created_at instead, so the receiver sees it as new.
func (s *FriendService) SendRequest(ctx context.Context, userID, friendID uuid.UUID) (*models.FriendRequest, error) {
	if userID == friendID {
		return nil, ErrCannotFriendSelf
	}

	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, friendID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	existing, err := scanRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM friendships
		 WHERE (user_id = $1 AND friend_id = $2)
		    OR (user_id = $2 AND friend_id = $1)
		 LIMIT 1`,
		userID, friendID,
	))
	switch {
	case errors.Is(err, ErrFriendshipNotFound):
	case err != nil:
		return nil, fmt.Errorf("checking friendship existence: %w", err)
	default:
		if existing.Status == models.FriendRequestStatusPending &&
			existing.SenderID == userID &&
			s.now().Sub(existing.CreatedAt) > RequestRefreshAfter {
			return s.refresh(ctx, existing)
		}
		return nil, ErrFriendshipExists
	}

	req, err := scanRequest(s.db.QueryRow(ctx,
		`INSERT INTO friendships (user_id, friend_id, status)
		 VALUES ($1, $2, 'pending')
		 RETURNING `+requestColumns,
		userID, friendID,
	))
	if err != nil {
		return nil, fmt.Errorf("creating friendship: %w", err)
	}
	return req, nil
}

func (s *FriendService) refresh(ctx context.Context, req *models.FriendRequest) (*models.FriendRequest, error) {
	err := s.db.QueryRow(ctx,
		`UPDATE friendships SET created_at = NOW() WHERE id = $1 RETURNING created_at`,
		req.ID,
	).Scan(&req.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("refreshing friendship: %w", err)
	}
	return req, nil
}

func (s *FriendService) AcceptRequest(ctx context.Context, userID, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.pendingFor(ctx, userID, requestID)
	if err != nil {
		return nil, err
	}

	tag, err := s.db.Exec(ctx,
		"UPDATE friendships SET status = 'accepted', accepted_at = NOW() WHERE id = $1 AND status = 'pending'",
		requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("accepting friendship: %w", err)
	}
	// Lost a race with the sender withdrawing or a second accept.
	if tag.RowsAffected() == 0 {
		return nil, ErrFriendshipNotPending
	}

	req.Status = models.FriendRequestStatusAccepted
	return req, nil
}

// RejectRequest deletes the request; rejected requests are not retained.
func (s *FriendService) RejectRequest(ctx context.Context, userID, requestID uuid.UUID) error {
	if _, err := s.pendingFor(ctx, userID, requestID); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx,
		"DELETE FROM friendships WHERE id = $1 AND status = 'pending'",
		requestID,
	)
	if err != nil {
		return fmt.Errorf("rejecting friendship: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFriendshipNotPending
	}
	return nil
}

func (s *FriendService) pendingFor(ctx context.Context, userID, requestID uuid.UUID) (*models.FriendRequest, error) {
	req, err := s.getByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	// Only the recipient (friend_id) can respond
	if req.ReceiverID != userID {
		return nil, ErrNotFriendshipRecipient
	}
	if req.Status != models.FriendRequestStatusPending {
		return nil, ErrFriendshipNotPending
	}
	return req, nil
}

// ListFriends returns accepted friends as the viewer sees them.
func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.user_id, f.friend_id, f.status, f.created_at,
		        u.id, u.phone, u.display_name, u.avatar_ref, u.created_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_id = $1 THEN f.friend_id ELSE f.user_id END
		 WHERE (f.user_id = $1 OR f.friend_id = $1) AND f.status = 'accepted'
		 ORDER BY u.display_name, u.phone`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var req models.FriendRequest
		var user models.User
		if err := rows.Scan(
			&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt,
			&user.ID, &user.Phone, &user.DisplayName, &user.AvatarRef, &user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, models.FriendFromRequest(userID, user, &req))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	return friends, nil
}

// ListPendingRequests returns pending requests addressed to userID, newest first.
func (s *FriendService) ListPendingRequests(ctx context.Context, userID uuid.UUID) ([]models.IncomingRequest, error) {
	rows, err := s.db.Query(ctx,
		`SELECT f.id, f.user_id, f.friend_id, f.status, f.created_at, u.phone, u.display_name
		 FROM friendships f
		 JOIN users u ON f.user_id = u.id
		 WHERE f.friend_id = $1 AND f.status = 'pending'
		 ORDER BY f.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	defer rows.Close()

	requests := []models.IncomingRequest{}
	for rows.Next() {
		var r models.IncomingRequest
		if err := rows.Scan(&r.ID, &r.SenderID, &r.ReceiverID, &r.Status, &r.CreatedAt, &r.SenderPhone, &r.SenderDisplayName); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing pending requests: %w", err)
	}
	return requests, nil
}

func (s *FriendService) getByID(ctx context.Context, id uuid.UUID) (*models.FriendRequest, error) {
	req, err := scanRequest(s.db.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM friendships WHERE id = $1`,
		id,
	))
	if err != nil && !errors.Is(err, ErrFriendshipNotFound) {
		return nil, fmt.Errorf("getting friendship: %w", err)
	}
	return req, err
}

func scanRequest(row Row) (*models.FriendRequest, error) {
	req := &models.FriendRequest{}
	err := row.Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendshipNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}
