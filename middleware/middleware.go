// Package middleware wraps the host-side dispatcher.
//
// Middlewares see the decoded request envelope and the response envelope the
// namespace handler produced; they never see the transport.
package middleware

import (
	"context"

	"ezi-bridge/message"
)

type HandlerFunc func(ctx context.Context, req *message.Request) *message.Response

type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes middlewares so the first one listed runs outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
