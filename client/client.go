// Package client turns the fire-and-forget Channel into independently
// awaitable calls.
//
// Each Call gets a correlation id "<namespace>.<method>:<counter>", is
// registered as pending, and is sent as a request envelope. When a response
// with the same id arrives, the pending entry is removed and settled, once.
// Responses can come back in any order:
//
//	Call(windowm.getSize) ──id=windowm.getSize:0──┐
//	Call(tray.show)       ──id=tray.show:1────────┼──→ Channel ──→ host
//	Call(terminal.log)    ──id=terminal.log:2─────┘
//
//	inbound: id=tray.show:1 → pending[tray.show:1] settled, others untouched
package client

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"ezi-bridge/channel"
	"ezi-bridge/message"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MaxSafeInteger is where the correlation counter wraps back to zero.
// It is the largest integer the front-end runtime represents exactly, so ids
// stay comparable with ids generated there.
//
// A call still pending when the counter wraps can collide with a new call of
// the same method. The new call replaces the old entry and the old call never
// settles; the collision is logged.
const MaxSafeInteger uint64 = 1<<53 - 1

// ErrSend wraps failures to encode or post a request. The call fails with it
// instead of Call returning an error.
var ErrSend = errors.New("send request")

// Client is the call multiplexer. Construct one per Channel and share it.
type Client struct {
	ch     *channel.Channel
	logger zerolog.Logger

	mu      sync.Mutex
	counter uint64
	pending map[string]*Call
}

type Option func(*Client)

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New subscribes the client to ch. It must be the only response consumer on ch.
func New(ch *channel.Channel, opts ...Option) *Client {
	c := &Client{
		ch:      ch,
		logger:  log.Logger,
		pending: make(map[string]*Call),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "client").Logger()
	ch.Subscribe(c.receive)
	return c
}

// Call issues namespace.method with args and returns immediately.
// args is marshalled to JSON as-is. Call never fails synchronously; encoding
// or send errors settle the returned Call with an ErrSend-wrapped error.
func (c *Client) Call(namespace, method string, args any) *Call {
	fn := namespace + "." + method

	c.mu.Lock()
	if c.counter >= MaxSafeInteger {
		c.counter = 0
	}
	id := fn + ":" + strconv.FormatUint(c.counter, 10)
	c.counter++

	call := newCall(id, fn)
	if _, ok := c.pending[id]; ok {
		c.logger.Warn().Str("id", id).Msg("correlation id reused while still pending, previous call orphaned")
	}
	c.pending[id] = call
	c.mu.Unlock()

	raw, err := marshalArgs(args)
	if err == nil {
		err = c.ch.Send(&message.Request{ID: id, Func: fn, Args: raw})
	}
	if err != nil {
		if c.remove(id, call) {
			call.fail(errors.Wrapf(ErrSend, "%s: %v", fn, err))
		}
	}
	return call
}

// Invoke issues a call, waits for it and decodes the result into reply.
// ctx only bounds the wait; the call itself stays in flight.
func (c *Client) Invoke(ctx context.Context, namespace, method string, args, reply any) error {
	return c.Call(namespace, method, args).Decode(ctx, reply)
}

// Pending returns the number of unsettled calls.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Client) receive(in channel.Inbound) {
	var resp message.Response
	if err := in.Decode(&resp); err != nil {
		c.logger.Debug().Err(err).Msg("dropping undecodable inbound message")
		return
	}
	if resp.ID == "" {
		c.logger.Debug().Msg("dropping inbound message without id")
		return
	}

	c.mu.Lock()
	call, ok := c.pending[resp.ID]
	if ok {
		delete(c.pending, resp.ID)
	}
	c.mu.Unlock()

	if !ok {
		c.logger.Warn().Str("id", resp.ID).Msg("callback not found")
		return
	}

	if text, isErr := resp.ErrorText(); isErr {
		call.fail(&RemoteError{Func: call.Func, Message: text})
		return
	}
	call.fulfil(resp.Result)
}

// remove deletes id only if it still maps to call. The caller that removes
// an entry is the one that settles it.
func (c *Client) remove(id string, call *Call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[id] != call {
		return false
	}
	delete(c.pending, id)
	return true
}

func marshalArgs(args any) (json.RawMessage, error) {
	switch a := args.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return a, nil
	}
	return json.Marshal(args)
}
