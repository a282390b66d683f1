package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/friendsync/internal/contacts"
	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
	"github.com/HammerMeetNail/friendsync/internal/sms"
)

const (
	InviteThrottleWindow = 24 * time.Hour
	inviteKeyPrefix      = "invite:sms:"
)

var (
	ErrPhoneRegistered = errors.New("phone already belongs to a user")
	ErrInviteThrottled = errors.New("invite already sent recently")
)

type InviteService struct {
	db     DBConn
	redis  *redis.Client
	sender sms.Sender
	users  *UserService
}

func NewInviteService(db DBConn, redis *redis.Client, sender sms.Sender) *InviteService {
	return &InviteService{
		db:     db,
		redis:  redis,
		sender: sender,
		users:  NewUserService(db),
	}
}

func inviteThrottleKey(inviterID uuid.UUID, phone models.ContactKey) string {
	return inviteKeyPrefix + inviterID.String() + ":" + string(phone)
}

// SendSMSInvite texts an invitation to a phone with no account. One invite per
// inviter and phone is allowed per InviteThrottleWindow; the throttle slot is claimed
// before sending and released again if the provider fails.
func (s *InviteService) SendSMSInvite(ctx context.Context, inviterID uuid.UUID, phone models.ContactKey) (*models.SMSInvite, error) {
	if !contacts.IsKey(phone) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPhone, phone)
	}

	var registered bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE phone = $1)`, string(phone)).Scan(&registered)
	if err != nil {
		return nil, fmt.Errorf("checking phone: %w", err)
	}
	if registered {
		return nil, ErrPhoneRegistered
	}

	inviter, err := s.users.GetByID(ctx, inviterID)
	if err != nil {
		return nil, err
	}

	key := inviteThrottleKey(inviterID, phone)
	claimed, err := s.redis.SetNX(ctx, key, time.Now().Unix(), InviteThrottleWindow).Result()
	if err != nil {
		return nil, fmt.Errorf("claiming invite slot: %w", err)
	}
	if !claimed {
		return nil, ErrInviteThrottled
	}

	if err := s.sender.SendInvite(ctx, phone, inviter.DisplayName); err != nil {
		if delErr := s.redis.Del(context.WithoutCancel(ctx), key).Err(); delErr != nil {
			logging.Warn("Releasing invite slot failed", map[string]interface{}{"error": delErr})
		}
		return nil, fmt.Errorf("sending invite: %w", err)
	}

	invite := &models.SMSInvite{}
	err = s.db.QueryRow(ctx,
		`INSERT INTO sms_invites (inviter_user_id, phone)
		 VALUES ($1, $2)
		 RETURNING id, inviter_user_id, phone, created_at`,
		inviterID, string(phone),
	).Scan(&invite.ID, &invite.InviterUserID, &invite.Phone, &invite.CreatedAt)
	if err != nil {
		// The text already went out; keep the throttle slot.
		return nil, fmt.Errorf("recording invite: %w", err)
	}
	return invite, nil
}
