package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
)

// RateLimitMiddleware rejects requests beyond a token-bucket rate shared
// by all connections. Rejected requests get a timeout error code: the REPE
// code set has no dedicated overload code, and timeout is the one that tells
// callers to retry later.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			if !limiter.Allow() {
				return message.ErrorResponse(req, protocol.CodeTimeout, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
