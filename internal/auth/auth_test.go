package auth

import (
	"context"
	"testing"
	"time"

	"github.com/evolearn/studyhub/internal/model"
	"github.com/evolearn/studyhub/internal/tester"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, err := BearerToken(tt.header)
		if !tt.ok {
			assert.ErrorIs(t, err, ErrUnauthenticated, tt.header)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestTokenAuthenticator(t *testing.T) {
	s := tester.Store(t)
	clk := tester.Clock()
	ctx := context.Background()

	expires := clk.Now().Add(time.Hour)
	user := &model.User{Name: "ana", Email: "ana@example.com", AuthToken: "tok-ana", TokenExpiresAt: &expires}
	require.NoError(t, s.CreateUser(ctx, user))

	authn := NewTokenAuthenticator(s, clk)

	id, err := authn.Authenticate(ctx, "tok-ana")
	require.NoError(t, err)
	assert.Equal(t, &Identity{UserID: user.ID, Name: "ana", Email: "ana@example.com"}, id)

	_, err = authn.Authenticate(ctx, "tok-unknown")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	clk.Advance(time.Hour)
	_, err = authn.Authenticate(ctx, "tok-ana")
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestJWTAuthenticator(t *testing.T) {
	clk := tester.Clock()
	authn, err := NewJWTAuthenticator("0123456789abcdef-secret", time.Hour, clk)
	require.NoError(t, err)
	ctx := context.Background()

	token, err := authn.Issue(&Identity{UserID: 7, Name: "ana", Email: "ana@example.com"})
	require.NoError(t, err)

	id, err := authn.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), id.UserID)
	assert.Equal(t, "ana@example.com", id.Email)

	other, err := NewJWTAuthenticator("another-secret-of-16", time.Hour, clk)
	require.NoError(t, err)
	_, err = other.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	clk.Advance(2 * time.Hour)
	_, err = authn.Authenticate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = NewJWTAuthenticator("short", time.Hour, clk)
	assert.Error(t, err)
}

type staticAuthenticator map[string]*Identity

func (s staticAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if id, ok := s[token]; ok {
		return id, nil
	}
	return nil, ErrUnauthenticated
}

func TestUnaryServerAuthInterceptor(t *testing.T) {
	interceptor := UnaryServerAuthInterceptor(staticAuthenticator{"good": {UserID: 3}}, "/grpc.health.v1.Health/Check")

	handler := func(ctx context.Context, req any) (any, error) {
		id, ok := FromContext(ctx)
		if !ok {
			return "anonymous", nil
		}
		return id.UserID, nil
	}

	call := func(method, header string) (any, error) {
		ctx := context.Background()
		if header != "" {
			ctx = metadata.NewIncomingContext(ctx, metadata.Pairs("authorization", header))
		}
		return interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: method}, handler)
	}

	resp, err := call("/studyhub.v1/Locks", "Bearer good")
	require.NoError(t, err)
	assert.Equal(t, uint(3), resp)

	_, err = call("/studyhub.v1/Locks", "Bearer bad")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = call("/studyhub.v1/Locks", "")
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	resp, err = call("/grpc.health.v1.Health/Check", "")
	require.NoError(t, err)
	assert.Equal(t, "anonymous", resp)
}
