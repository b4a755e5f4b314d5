package middleware

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
)

// RecoveryMiddleware converts a handler panic into an invalid_body error
// response (the same code a handler's explicit domain failure maps to) so
// one broken request cannot take down the connection worker.
func RecoveryMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) (resp *message.Message) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Str("method", req.Method()).
						Uint64("id", req.Header.ID).
						Interface("panic", r).
						Msg("handler panic")
					resp = message.ErrorResponse(req, protocol.CodeInvalidBody,
						fmt.Sprintf("handler failure in %s", req.Method()))
				}
			}()
			return next(ctx, req)
		}
	}
}
