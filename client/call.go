package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// RemoteError is a failure reported by the host in result.error.
type RemoteError struct {
	Func    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote error in %s: %s", e.Func, e.Message)
}

// Call is the asynchronous result of one remote operation.
// It settles exactly once, with a result or an error.
type Call struct {
	ID   string // Correlation id
	Func string // "<namespace>.<method>"

	once   sync.Once
	done   chan struct{}
	result json.RawMessage
	err    error
}

func newCall(id, fn string) *Call {
	return &Call{ID: id, Func: fn, done: make(chan struct{})}
}

// Done is closed when the call settles.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Result returns the raw result. Valid after Done is closed.
func (c *Call) Result() json.RawMessage {
	return c.result
}

// Err returns the failure, if any. Valid after Done is closed.
func (c *Call) Err() error {
	return c.err
}

// Wait blocks until the call settles or ctx ends. Ending ctx abandons the
// wait only; the call stays pending until its response arrives.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.result, c.err
	case <-ctx.Done():
		return nil, errors.Wrapf(ctx.Err(), "waiting for %s", c.ID)
	}
}

// Decode waits and unmarshals the result into v. A nil v only waits.
func (c *Call) Decode(ctx context.Context, v any) error {
	result, err := c.Wait(ctx)
	if err != nil {
		return err
	}
	if v == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, v); err != nil {
		return errors.Wrapf(err, "decode %s result", c.Func)
	}
	return nil
}

func (c *Call) fulfil(result json.RawMessage) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

func (c *Call) fail(err error) {
	c.once.Do(func() {
		c.err = err
		close(c.done)
	})
}
