package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/evolearn/studyhub/internal/clock"
	"github.com/golang-jwt/jwt/v5"
)

const DefaultTokenTTL = 24 * time.Hour

type Claims struct {
	UserID uint   `json:"uid"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

var _ Authenticator = (*JWTAuthenticator)(nil)

// JWTAuthenticator issues and verifies HS256 tokens.
type JWTAuthenticator struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewJWTAuthenticator(secret string, ttl time.Duration, clk clock.Clock) (*JWTAuthenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("jwt secret must be at least 16 bytes")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTAuthenticator{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Issue signs a token for the identity.
func (a *JWTAuthenticator) Issue(id *Identity) (string, error) {
	now := a.clock.Now()
	claims := &Claims{
		UserID: id.UserID,
		Name:   id.Name,
		Email:  id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *JWTAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrTokenExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: token has no user", ErrUnauthenticated)
	}

	return &Identity{UserID: claims.UserID, Name: claims.Name, Email: claims.Email}, nil
}
