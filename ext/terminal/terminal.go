// Package terminal forwards front-end log lines to the host's terminal.
// Release builds drop them.
package terminal

import (
	"context"
	"fmt"
	"strings"

	"ezi-bridge/ext"

	"github.com/rs/zerolog"
)

const Namespace = "terminal"

type Terminal struct {
	c       ext.Caller
	release bool
	logger  zerolog.Logger
}

type Option func(*Terminal)

// Release turns the terminal into a no-op.
func Release(release bool) Option {
	return func(t *Terminal) {
		t.release = release
	}
}

// WithLogger echoes Log lines locally before forwarding them.
func WithLogger(l zerolog.Logger) Option {
	return func(t *Terminal) {
		t.logger = l
	}
}

func New(c ext.Caller, opts ...Option) *Terminal {
	t := &Terminal{c: c, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type logArgs struct {
	Argv []any `json:"argv"`
}

func (t *Terminal) Log(ctx context.Context, argv ...any) error {
	if t.release {
		return nil
	}
	t.logger.Debug().Msg(fmt.Sprint(argv...))
	return t.c.Invoke(ctx, Namespace, "log", logArgs{Argv: nonNil(argv)}, nil)
}

func (t *Terminal) Error(ctx context.Context, argv ...any) error {
	if t.release {
		return nil
	}
	return t.c.Invoke(ctx, Namespace, "error", logArgs{Argv: nonNil(argv)}, nil)
}

// ReportUncaught forwards an unhandled failure as an "Uncaught ..." error
// line. inPromise marks failures from asynchronous work.
func (t *Terminal) ReportUncaught(ctx context.Context, trace, origin string, inPromise bool) error {
	prefix := "Uncaught "
	if inPromise {
		prefix = "Uncaught (in promise) "
	}
	return t.Error(ctx, prefix+FormatTrace(trace, origin))
}

// FormatTrace hides the page origin and file URL scheme in a stack trace.
func FormatTrace(trace, origin string) string {
	if trace == "" {
		return "Unknown Error"
	}
	if origin != "" {
		trace = strings.ReplaceAll(trace, origin, "LOCATION_ORIGIN")
	}
	return strings.ReplaceAll(trace, "file:///", "")
}

func nonNil(argv []any) []any {
	if argv == nil {
		return []any{}
	}
	return argv
}
