package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorization = "authorization"

// UnaryServerAuthInterceptor authenticates grpc calls, except the methods in
// public, and stores the identity in the call context.
func UnaryServerAuthInterceptor(authn Authenticator, public ...string) grpc.UnaryServerInterceptor {
	open := make(map[string]bool, len(public))
	for _, method := range public {
		open[method] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		if open[info.FullMethod] {
			return handler(ctx, req)
		}

		accessToken, err := accessTokenFromHeader(ctx, authorization)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		id, err := authn.Authenticate(ctx, accessToken)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithIdentity(ctx, id), req)
	}
}

func accessTokenFromHeader(ctx context.Context, header string) (string, error) {
	headers, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", ErrUnauthenticated
	}

	val := headers.Get(header)
	if len(val) == 0 {
		return "", ErrUnauthenticated
	}

	return BearerToken(val[0])
}
