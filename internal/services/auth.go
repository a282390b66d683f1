package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"

	"github.com/HammerMeetNail/friendsync/internal/logging"
	"github.com/HammerMeetNail/friendsync/internal/models"
)

const (
	sessionDuration  = 30 * 24 * time.Hour // 30 days
	sessionKeyPrefix = "session:"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// AuthService validates bearer tokens issued by the hosted sign-in flow. Tokens are
// stored only as SHA-256 hashes, in Redis for fast lookups and in Postgres as the
// durable copy.
type AuthService struct {
	db    DBConn
	redis *redis.Client
	users *UserService
	now   func() time.Time
}

func NewAuthService(db DBConn, redis *redis.Client) *AuthService {
	return &AuthService{
		db:    db,
		redis: redis,
		users: NewUserService(db),
		now:   time.Now,
	}
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *AuthService) ValidateSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	tokenHash := HashToken(token)

	if s.redis != nil {
		redisKey := sessionKeyPrefix + tokenHash
		userIDStr, err := s.redis.Get(ctx, redisKey).Result()
		if err == nil {
			// Sliding expiry.
			s.redis.Expire(ctx, redisKey, sessionDuration)

			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				return nil, fmt.Errorf("parsing user id: %w", err)
			}
			return s.users.GetByID(ctx, userID)
		}
		if !errors.Is(err, redis.Nil) {
			logging.Warn("Session lookup in Redis failed, using database", map[string]interface{}{"error": err})
		}
	}

	var session models.Session
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, created_at
		 FROM sessions WHERE token_hash = $1`,
		tokenHash,
	).Scan(&session.ID, &session.UserID, &session.TokenHash, &session.ExpiresAt, &session.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session: %w", err)
	}

	if s.now().After(session.ExpiresAt) {
		_, _ = s.db.Exec(ctx, "DELETE FROM sessions WHERE id = $1", session.ID)
		return nil, ErrSessionExpired
	}

	return s.users.GetByID(ctx, session.UserID)
}
