package middleware

import (
	"context"

	"ezi-bridge/message"

	"golang.org/x/time/rate"
)

// RateLimit answers with an error once the token bucket is empty.
// r is calls per second, burst the bucket size.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			if !limiter.Allow() {
				return message.NewErrorResponse(req.ID, "rate limit exceeded")
			}
			return next(ctx, req)
		}
	}
}
