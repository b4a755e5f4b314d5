package middleware

import (
	"context"
	"time"

	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
)

// TimeoutMiddleware bounds handler execution. On expiry the caller gets a
// timeout error response; the handler goroutine observes cancellation via
// its context.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Message, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.ErrorResponse(req, protocol.CodeTimeout, "request timed out")
			}
		}
	}
}
