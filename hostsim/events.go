package hostsim

import (
	"encoding/json"
	"sync"

	"ezi-bridge/message"

	"github.com/rs/zerolog"
)

// Notifier delivers host events to attached front-ends.
// *server.Server satisfies it.
type Notifier interface {
	Notify(ev *message.Event) int
}

// eventBus fans host-side happenings (clicks, close choices) out as
// message.Event. It is a no-op until a Notifier is set.
type eventBus struct {
	logger zerolog.Logger

	mu sync.RWMutex
	n  Notifier
}

func (e *eventBus) set(n Notifier) {
	e.mu.Lock()
	e.n = n
	e.mu.Unlock()
}

// emit sends callback with args and returns how many front-ends it reached.
func (e *eventBus) emit(callback string, args any) int {
	e.mu.RLock()
	n := e.n
	e.mu.RUnlock()
	if n == nil {
		e.logger.Debug().Str("callback", callback).Msg("no front-end to notify")
		return 0
	}
	raw, err := json.Marshal(args)
	if err != nil {
		e.logger.Warn().Err(err).Str("callback", callback).Msg("cannot encode event args")
		return 0
	}
	return n.Notify(&message.Event{Callback: callback, Args: raw})
}
