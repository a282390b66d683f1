package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/friendsync/internal/contacts"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

// MaxMatchPhones bounds a single match request.
const MaxMatchPhones = 2000

var (
	ErrInvalidPhone  = errors.New("invalid phone number")
	ErrTooManyPhones = errors.New("too many phone numbers")
)

type DirectoryService struct {
	db DBConn
}

func NewDirectoryService(db DBConn) *DirectoryService {
	return &DirectoryService{db: db}
}

// MatchContacts returns one Friend per distinct phone, in request order, as the viewer
// sees it. Phones with no account, including the viewer's own, come back not_registered.
func (s *DirectoryService) MatchContacts(ctx context.Context, viewerID uuid.UUID, phones []models.ContactKey) ([]models.Friend, error) {
	if len(phones) > MaxMatchPhones {
		return nil, ErrTooManyPhones
	}

	keys := make([]models.ContactKey, 0, len(phones))
	params := make([]string, 0, len(phones))
	seen := make(map[models.ContactKey]bool, len(phones))
	for _, p := range phones {
		if !contacts.IsKey(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPhone, p)
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		keys = append(keys, p)
		params = append(params, string(p))
	}
	if len(keys) == 0 {
		return []models.Friend{}, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.phone, u.display_name, u.avatar_ref, u.created_at,
		        f.id, f.user_id, f.friend_id, f.status, f.created_at
		 FROM users u
		 LEFT JOIN friendships f
		   ON (f.user_id = $1 AND f.friend_id = u.id)
		   OR (f.user_id = u.id AND f.friend_id = $1)
		 WHERE u.phone = ANY($2) AND u.id != $1`,
		viewerID, params,
	)
	if err != nil {
		return nil, fmt.Errorf("matching contacts: %w", err)
	}
	defer rows.Close()

	matched := make(map[models.ContactKey]models.Friend, len(keys))
	for rows.Next() {
		var user models.User
		var (
			reqID      *uuid.UUID
			senderID   *uuid.UUID
			receiverID *uuid.UUID
			status     *string
			createdAt  *time.Time
		)
		if err := rows.Scan(
			&user.ID, &user.Phone, &user.DisplayName, &user.AvatarRef, &user.CreatedAt,
			&reqID, &senderID, &receiverID, &status, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}

		var req *models.FriendRequest
		if reqID != nil && senderID != nil && receiverID != nil && status != nil {
			req = &models.FriendRequest{
				ID:         *reqID,
				SenderID:   *senderID,
				ReceiverID: *receiverID,
				Status:     models.FriendRequestStatus(*status),
			}
			if createdAt != nil {
				req.CreatedAt = *createdAt
			}
		}
		matched[user.Phone] = models.FriendFromRequest(viewerID, user, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matching contacts: %w", err)
	}

	friends := make([]models.Friend, 0, len(keys))
	for _, key := range keys {
		if f, ok := matched[key]; ok {
			friends = append(friends, f)
			continue
		}
		friends = append(friends, models.UnregisteredFriend(key))
	}
	return friends, nil
}
