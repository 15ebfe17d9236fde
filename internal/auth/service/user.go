package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aussiebroadwan/authsvc/internal/auth/domain"
	"github.com/aussiebroadwan/authsvc/internal/auth/store"
	"github.com/aussiebroadwan/authsvc/pkg/cryptox"
)

var ErrInvalidUser = errors.New("invalid_user")

// MinPasswordLength applies to accounts created through the admin CLI.
const MinPasswordLength = 8

type UserService struct {
	Store  store.Store
	Hasher *cryptox.PasswordHasher
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID int64) (domain.User, error) {
	return s.Store.Users().GetByID(ctx, userID)
}

// CreateUser hashes the password and stores a new account.
func (s *UserService) CreateUser(ctx context.Context, login, password string) (domain.User, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return domain.User{}, fmt.Errorf("%w: login is required", ErrInvalidUser)
	}
	if len(password) < MinPasswordLength {
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidUser, MinPasswordLength)
	}

	hash, err := s.Hasher.Hash(password)
	if err != nil {
		return domain.User{}, err
	}
	return s.Store.Users().Create(ctx, login, hash)
}
