package server

import (
	"context"
	"time"

	"github.com/evolearn/studyhub/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func UnaryGrpcRequestTimeInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logrus.Infof("request time: %v: %v", info.FullMethod, time.Since(start))
		return resp, err
	}
}

// UnaryRequestTimeInterceptor logs the duration of client calls.
func UnaryRequestTimeInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req interface{},
		reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logrus.Debugf("request time: %v: %v", method, time.Since(start))
		return err
	}
}

// RequestTime tags every request with an id and logs its duration.
func RequestTime() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		logrus.WithFields(logrus.Fields{
			"request_id": id,
			"status":     c.Writer.Status(),
		}).Infof("request time: %s %s: %v", c.Request.Method, c.Request.URL.Path, time.Since(start))
	}
}

// Authenticate resolves the bearer token of the request and stores the
// identity in the request context.
func Authenticate(authn auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := auth.BearerToken(c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, err)
			return
		}
		id, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			writeError(c, err)
			return
		}

		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}
