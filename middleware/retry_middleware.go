package middleware

import (
	"context"
	"strings"
	"time"

	"ezi-bridge/message"

	"github.com/rs/zerolog"
)

// Retry re-runs a host handler whose failure looks transient ("timed out",
// "busy"), backing off exponentially from baseDelay. Only idempotent
// namespaces should be wrapped with it.
func Retry(logger zerolog.Logger, maxRetries int, baseDelay time.Duration) Middleware {
	logger = logger.With().Str("component", "retry").Logger()
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			resp := next(ctx, req)
			for i := 0; i < maxRetries; i++ {
				text, isErr := resp.ErrorText()
				if !isErr || !transient(text) {
					return resp
				}
				logger.Debug().Str("func", req.Func).Int("attempt", i+1).Str("error", text).Msg("retrying call")
				select {
				case <-time.After(baseDelay * time.Duration(1<<i)):
				case <-ctx.Done():
					return resp
				}
				resp = next(ctx, req)
			}
			return resp
		}
	}
}

func transient(text string) bool {
	return strings.Contains(text, "timed out") || strings.Contains(text, "busy")
}
