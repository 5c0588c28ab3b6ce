package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/seat-scheduler/internal/domain/user"
	"github.com/example/seat-scheduler/internal/internaltypes"
)

type UserStore interface {
	Create(ctx context.Context, u user.Operator) error
	GetByUsername(ctx context.Context, username string) (user.Operator, error)
}

// AuthService checks operator logins for the web API.
type AuthService struct {
	Users UserStore
}

func (a AuthService) VerifyPassword(ctx context.Context, username, password string) (user.Operator, error) {
	u, err := a.Users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, internaltypes.ErrNotFound) {
			return user.Operator{}, internaltypes.ErrUnauthorized
		}
		return user.Operator{}, err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return user.Operator{}, internaltypes.ErrUnauthorized
	}
	return u, nil
}

func (a AuthService) Register(ctx context.Context, username, password string) (user.Operator, error) {
	u, err := NewUser(username, password)
	if err != nil {
		return user.Operator{}, err
	}
	return u, a.Users.Create(ctx, u)
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func NewUser(username, password string) (user.Operator, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.Operator{}, internaltypes.Invalid("username", "is required")
	}
	if len(password) < 8 {
		return user.Operator{}, internaltypes.Invalid("password", "must be at least 8 characters")
	}
	h, err := HashPassword(password)
	if err != nil {
		return user.Operator{}, err
	}
	return user.Operator{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: h,
		CreatedAt:    time.Now().UTC(),
	}, nil
}
