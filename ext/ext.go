// Package ext holds what the front-end surfaces (windowm, tray, terminal,
// version, filesystem) share: the Caller they issue requests through and
// the callback table host events are routed to.
package ext

import (
	"context"
	"encoding/json"
	"sync"

	"ezi-bridge/channel"
	"ezi-bridge/message"

	"github.com/rs/zerolog"
)

// Caller issues one request and decodes its result into reply.
// *client.Client satisfies it.
type Caller interface {
	Invoke(ctx context.Context, namespace, method string, args, reply any) error
}

// Callbacks maps callback names to front-end functions the host may
// trigger with a message.Event.
type Callbacks struct {
	logger zerolog.Logger

	mu  sync.RWMutex
	fns map[string]func(json.RawMessage)

	qmu      sync.Mutex
	queue    []message.Event
	draining bool
}

func NewCallbacks(logger zerolog.Logger) *Callbacks {
	return &Callbacks{
		logger: logger.With().Str("component", "callbacks").Logger(),
		fns:    make(map[string]func(json.RawMessage)),
	}
}

// Set installs fn under name, replacing any earlier one.
func (c *Callbacks) Set(name string, fn func(json.RawMessage)) {
	c.mu.Lock()
	c.fns[name] = fn
	c.mu.Unlock()
}

func (c *Callbacks) Delete(name string) {
	c.mu.Lock()
	delete(c.fns, name)
	c.mu.Unlock()
}

// Fire runs the callback registered under name. It reports false when
// there is none.
func (c *Callbacks) Fire(name string, args json.RawMessage) bool {
	c.mu.RLock()
	fn, ok := c.fns[name]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug().Str("callback", name).Msg("no callback registered")
		return false
	}
	fn(args)
	return true
}

// Listen routes every inbound event on ch to Fire. Responses and anything
// the channel codec cannot read as an event are left to other subscribers.
//
// Callbacks run in arrival order on a goroutine of their own, never on the
// channel's receive path, so a callback may issue calls and wait for them.
// A panicking callback is logged and the next event still runs.
func (c *Callbacks) Listen(ch *channel.Channel) {
	ch.Subscribe(func(in channel.Inbound) {
		var ev message.Event
		if err := in.Decode(&ev); err != nil || ev.Callback == "" {
			return
		}
		c.enqueue(ev)
	})
}

func (c *Callbacks) enqueue(ev message.Event) {
	c.qmu.Lock()
	c.queue = append(c.queue, ev)
	if c.draining {
		c.qmu.Unlock()
		return
	}
	c.draining = true
	c.qmu.Unlock()
	go c.drain()
}

func (c *Callbacks) drain() {
	for {
		c.qmu.Lock()
		if len(c.queue) == 0 {
			c.draining = false
			c.qmu.Unlock()
			return
		}
		ev := c.queue[0]
		c.queue[0] = message.Event{}
		c.queue = c.queue[1:]
		c.qmu.Unlock()

		c.fireSafely(ev)
	}
}

func (c *Callbacks) fireSafely(ev message.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("callback", ev.Callback).Interface("panic", r).Msg("callback panicked")
		}
	}()
	c.Fire(ev.Callback, ev.Args)
}
