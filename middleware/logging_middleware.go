package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/repe-org/repe-go/message"
	"github.com/repe-org/repe-go/protocol"
)

// LoggingMiddleware logs one line per dispatched request: method, request
// id, body format, error code, and handling duration.
func LoggingMiddleware(logger zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			start := time.Now()
			resp := next(ctx, req)

			evt := logger.Info()
			if resp.Header.EC != protocol.CodeOK {
				evt = logger.Warn().Str("error", string(resp.Body))
			}
			evt.Str("method", req.Method()).
				Uint64("id", req.Header.ID).
				Stringer("format", req.Header.BodyFormat).
				Stringer("ec", resp.Header.EC).
				Dur("duration", time.Since(start)).
				Msg("request")
			return resp
		}
	}
}
