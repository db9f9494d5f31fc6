package ext

import (
	"encoding/json"
	"testing"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/codec"
	"ezi-bridge/transport"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestCallbacksListenRoutesEvents(t *testing.T) {
	front, back := transport.Pipe()
	defer front.Close()

	ch, err := channel.New(channel.NewSlot(front), channel.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cbs := NewCallbacks(zerolog.Nop())
	cbs.Listen(ch)

	got := make(chan json.RawMessage, 1)
	cbs.Set("__TrayMenuItemClickCallback_", func(args json.RawMessage) { got <- args })

	// a response and an unknown callback are both ignored
	require.NoError(t, back.PostMessage([]byte(`{"id":"tray.show:0","result":"success"}`)))
	require.NoError(t, back.PostMessage([]byte(`{"callback":"nobody","args":1}`)))
	require.NoError(t, back.PostMessage([]byte(`{"callback":"__TrayMenuItemClickCallback_","args":2001}`)))

	select {
	case args := <-got:
		require.JSONEq(t, `2001`, string(args))
	case <-time.After(time.Second):
		t.Fatal("callback not fired")
	}
}

func TestCallbacksIgnoreBinaryFrames(t *testing.T) {
	front, back := transport.Pipe()
	defer front.Close()

	ch, err := channel.New(channel.NewSlot(front), channel.WithCodec(&codec.BinaryCodec{}), channel.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cbs := NewCallbacks(zerolog.Nop())
	fired := make(chan struct{}, 1)
	cbs.Set("x", func(json.RawMessage) { fired <- struct{}{} })
	require.NotPanics(t, func() { cbs.Listen(ch) })

	require.NoError(t, back.PostMessage([]byte{2, 0, 0, 0, 0, 0, 0}))
	select {
	case <-fired:
		t.Fatal("binary frame must not fire a callback")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCallbacksSetDeleteFire(t *testing.T) {
	cbs := NewCallbacks(zerolog.Nop())
	calls := 0
	cbs.Set("a", func(json.RawMessage) { calls++ })
	require.True(t, cbs.Fire("a", nil))
	cbs.Delete("a")
	require.False(t, cbs.Fire("a", nil))
	require.Equal(t, 1, calls)
}

func TestCallbacksRunOffReceivePathInOrder(t *testing.T) {
	front, back := transport.Pipe()
	defer front.Close()

	ch, err := channel.New(channel.NewSlot(front), channel.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	cbs := NewCallbacks(zerolog.Nop())
	cbs.Listen(ch)

	// a blocked callback must not stop other inbound traffic
	release := make(chan struct{})
	responses := make(chan struct{}, 1)
	ch.Subscribe(func(in channel.Inbound) {
		var m map[string]any
		if in.Decode(&m) == nil && m["id"] != nil {
			responses <- struct{}{}
		}
	})

	var order []string
	done := make(chan struct{})
	cbs.Set("block", func(json.RawMessage) {
		<-release
		order = append(order, "block")
	})
	cbs.Set("boom", func(json.RawMessage) {
		order = append(order, "boom")
		panic("callback failure")
	})
	cbs.Set("last", func(json.RawMessage) {
		order = append(order, "last")
		close(done)
	})

	require.NoError(t, back.PostMessage([]byte(`{"callback":"block"}`)))
	require.NoError(t, back.PostMessage([]byte(`{"callback":"boom"}`)))
	require.NoError(t, back.PostMessage([]byte(`{"callback":"last"}`)))
	require.NoError(t, back.PostMessage([]byte(`{"id":"windowm.isVisible:0","result":true}`)))

	select {
	case <-responses:
	case <-time.After(time.Second):
		t.Fatal("response stuck behind a blocked callback")
	}

	close(release)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("events after a panicking callback were not run")
	}
	require.Equal(t, []string{"block", "boom", "last"}, order)
}
