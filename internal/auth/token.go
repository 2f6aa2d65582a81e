package auth

import (
	"context"
	"errors"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/evolearn/studyhub/internal/store"
	"gorm.io/gorm"
)

var _ Authenticator = (*TokenAuthenticator)(nil)

// TokenAuthenticator looks opaque tokens up in the users table.
type TokenAuthenticator struct {
	users store.UserStore
	clock clock.Clock
}

func NewTokenAuthenticator(users store.UserStore, clk clock.Clock) *TokenAuthenticator {
	return &TokenAuthenticator{users: users, clock: clk}
}

func (a *TokenAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	user, err := a.users.GetUserByToken(ctx, token)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if user.TokenExpiresAt != nil && !a.clock.Now().Before(*user.TokenExpiresAt) {
		return nil, ErrTokenExpired
	}

	return &Identity{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}
