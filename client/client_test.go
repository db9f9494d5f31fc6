package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/message"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// scriptedHost records requests and lets the test answer them in any order.
type scriptedHost struct {
	mu       sync.Mutex
	requests []message.Request
	listener func([]byte)
	postErr  error
}

func (h *scriptedHost) PostMessage(data []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.postErr != nil {
		return h.postErr
	}
	var req message.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	h.requests = append(h.requests, req)
	return nil
}

func (h *scriptedHost) AddListener(fn func([]byte)) {
	h.listener = fn
}

func (h *scriptedHost) respond(t *testing.T, id string, result string) {
	t.Helper()
	data, err := json.Marshal(message.Response{ID: id, Result: json.RawMessage(result)})
	require.NoError(t, err)
	h.listener(data)
}

func newTestClient(t *testing.T) (*Client, *scriptedHost) {
	host := &scriptedHost{}
	ch, err := channel.New(channel.NewSlot(host), channel.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return New(ch, WithLogger(zerolog.Nop())), host
}

func settled(c *Call) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

func TestCallSendsEnvelope(t *testing.T) {
	c, host := newTestClient(t)

	call := c.Call("ns", "m", map[string]int{"a": 1})
	require.Equal(t, "ns.m:0", call.ID)
	require.Equal(t, "ns.m", call.Func)

	require.Len(t, host.requests, 1)
	req := host.requests[0]
	require.Equal(t, "ns.m:0", req.ID)
	require.Equal(t, "ns.m", req.Func)
	require.JSONEq(t, `{"a":1}`, string(req.Args))
	require.Equal(t, 1, c.Pending())
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	c, _ := newTestClient(t)

	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		ns := []string{"windowm", "tray", "terminal"}[i%3]
		call := c.Call(ns, "show", nil)
		require.False(t, seen[call.ID], call.ID)
		seen[call.ID] = true
	}
	require.Equal(t, 1000, c.Pending())
}

func TestResponseFulfilsAndRemoves(t *testing.T) {
	c, host := newTestClient(t)
	ctx := context.Background()

	call := c.Call("ns", "m", map[string]int{"a": 1})
	other := c.Call("ns", "other", nil)

	host.respond(t, call.ID, `{"a":1}`)
	result, err := call.Wait(ctx)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(result))
	require.Equal(t, 1, c.Pending())

	// duplicate delivery is dropped and does not touch the other call
	host.respond(t, call.ID, `{"a":2}`)
	require.JSONEq(t, `{"a":1}`, string(call.Result()))
	require.False(t, settled(other))
	require.Equal(t, 1, c.Pending())
}

func TestRemoteErrorFailsCall(t *testing.T) {
	c, host := newTestClient(t)

	call := c.Call("ns", "m", nil)
	host.respond(t, call.ID, `{"error":"boom"}`)

	_, err := call.Wait(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	require.Equal(t, "ns.m", remote.Func)
	require.Equal(t, 0, c.Pending())
}

func TestOutOfOrderSettlement(t *testing.T) {
	c, host := newTestClient(t)
	ctx := context.Background()

	first := c.Call("windowm", "getSize", map[string]int{"winId": 1})
	second := c.Call("windowm", "getSize", map[string]int{"winId": 2})

	host.respond(t, second.ID, `{"width":2}`)
	require.False(t, settled(first))
	host.respond(t, first.ID, `{"width":1}`)

	var a, b struct{ Width int }
	require.NoError(t, first.Decode(ctx, &a))
	require.NoError(t, second.Decode(ctx, &b))
	require.Equal(t, 1, a.Width)
	require.Equal(t, 2, b.Width)
}

func TestUnknownResponseIsIgnored(t *testing.T) {
	c, host := newTestClient(t)

	call := c.Call("ns", "m", nil)
	require.NotPanics(t, func() {
		host.respond(t, "ns.m:999", `1`)
		host.listener([]byte(`{"result":1}`))
		host.listener([]byte(`not json`))
	})
	require.False(t, settled(call))
	require.Equal(t, 1, c.Pending())
}

func TestUnansweredCallDoesNotBlockOthers(t *testing.T) {
	c, host := newTestClient(t)

	lost := c.Call("tray", "show", nil)
	later := c.Call("tray", "hide", nil)
	host.respond(t, later.ID, `"success"`)

	var got string
	require.NoError(t, later.Decode(context.Background(), &got))
	require.Equal(t, "success", got)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := lost.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// giving up the wait leaves the call pending; a late answer still lands
	require.Equal(t, 1, c.Pending())
	host.respond(t, lost.ID, `"success"`)
	require.True(t, settled(lost))
}

func TestSendFailureSettlesCall(t *testing.T) {
	c, host := newTestClient(t)
	host.postErr = errors.New("host gone")

	call := c.Call("ns", "m", nil)
	require.True(t, settled(call))
	require.ErrorIs(t, call.Err(), ErrSend)
	require.Contains(t, call.Err().Error(), "host gone")
	require.Equal(t, 0, c.Pending())
}

func TestUnmarshalableArgsSettleCall(t *testing.T) {
	c, host := newTestClient(t)

	call := c.Call("ns", "m", map[string]any{"f": func() {}})
	require.True(t, settled(call))
	require.ErrorIs(t, call.Err(), ErrSend)
	require.Empty(t, host.requests)
	require.Equal(t, 0, c.Pending())
}

func TestCounterWrapsAtMaxSafeInteger(t *testing.T) {
	c, _ := newTestClient(t)

	c.counter = MaxSafeInteger - 1
	require.Equal(t, "ns.m:9007199254740990", c.Call("ns", "m", nil).ID)
	require.Equal(t, "ns.m:0", c.Call("ns", "m", nil).ID)
	require.Equal(t, "ns.m:1", c.Call("ns", "m", nil).ID)
}

func TestWrappedIDReplacesPendingEntry(t *testing.T) {
	c, host := newTestClient(t)

	orphan := c.Call("ns", "m", nil) // ns.m:0
	c.counter = MaxSafeInteger
	reused := c.Call("ns", "m", nil) // wraps to ns.m:0 again
	require.Equal(t, orphan.ID, reused.ID)
	require.Equal(t, 1, c.Pending())

	host.respond(t, reused.ID, `1`)
	require.True(t, settled(reused))
	require.False(t, settled(orphan))
}

func TestConcurrentCalls(t *testing.T) {
	c, host := newTestClient(t)

	var wg sync.WaitGroup
	calls := make([]*Call, 50)
	for i := range calls {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			calls[i] = c.Call("calc", "double", map[string]int{"n": i})
		}(i)
	}
	wg.Wait()

	host.mu.Lock()
	requests := append([]message.Request(nil), host.requests...)
	host.mu.Unlock()
	for i := len(requests) - 1; i >= 0; i-- {
		var args struct{ N int }
		require.NoError(t, json.Unmarshal(requests[i].Args, &args))
		host.respond(t, requests[i].ID, mustJSON(t, args.N*2))
	}

	for i, call := range calls {
		var got int
		require.NoError(t, call.Decode(context.Background(), &got))
		require.Equal(t, i*2, got)
	}
	require.Equal(t, 0, c.Pending())
}

func mustJSON(t *testing.T, v any) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}
