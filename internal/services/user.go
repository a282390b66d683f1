package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/friendsync/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

const userColumns = `id, phone, display_name, avatar_ref, created_at`

type UserService struct {
	db DBConn
}

func NewUserService(db DBConn) *UserService {
	return &UserService{db: db}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserService) GetByPhone(ctx context.Context, phone models.ContactKey) (*models.User, error) {
	return s.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, string(phone))
}

func (s *UserService) getOne(ctx context.Context, sql string, arg any) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRow(ctx, sql, arg).Scan(
		&user.ID, &user.Phone, &user.DisplayName, &user.AvatarRef, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return user, nil
}
