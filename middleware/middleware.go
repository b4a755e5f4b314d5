// Package middleware wraps the server's dispatch handler with cross-cutting
// behaviors (logging, rate limiting, timeouts, panic recovery).
package middleware

import (
	"context"

	"github.com/repe-org/repe-go/message"
)

// HandlerFunc processes one request message and produces the response
// message. The dispatcher is the innermost HandlerFunc.
type HandlerFunc func(ctx context.Context, req *message.Message) *message.Message

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one. They wrap in reverse order so that
// Chain(A, B, C)(handler) executes A → B → C → handler.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
