package middleware

import (
	"context"
	"time"

	"ezi-bridge/message"
)

// Timeout bounds a handler on the host side. The handler keeps running after
// the deadline but its late response is discarded.
func Timeout(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *message.Response, 1)
			go func() {
				done <- next(ctx, req)
			}()

			select {
			case resp := <-done:
				return resp
			case <-ctx.Done():
				return message.NewErrorResponse(req.ID, "request timed out")
			}
		}
	}
}
