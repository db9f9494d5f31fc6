package middleware

import (
	"context"
	"time"

	"ezi-bridge/message"

	"github.com/rs/zerolog"
)

// Logging logs every dispatched call with its duration, at debug level on
// success and warn level when the response carries an error.
func Logging(logger zerolog.Logger) Middleware {
	logger = logger.With().Str("component", "dispatch").Logger()
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)
			duration := time.Since(start)

			if text, isErr := resp.ErrorText(); isErr {
				logger.Warn().Str("id", req.ID).Str("func", req.Func).Dur("duration", duration).Str("error", text).Msg("call failed")
			} else {
				logger.Debug().Str("id", req.ID).Str("func", req.Func).Dur("duration", duration).Msg("call served")
			}
			return resp
		}
	}
}
