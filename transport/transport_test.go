package transport

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"ezi-bridge/protocol"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type host interface {
	PostMessage([]byte) error
	AddListener(func([]byte))
}

// collect registers a listener on h and returns a function that waits for n messages.
func collect(t *testing.T, h host) func(n int) []string {
	var (
		mu  sync.Mutex
		got []string
	)
	arrived := make(chan struct{}, 1024)
	h.AddListener(func(data []byte) {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		arrived <- struct{}{}
	})
	return func(n int) []string {
		for i := 0; i < n; i++ {
			select {
			case <-arrived:
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out after %d of %d messages", i, n)
			}
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), got...)
	}
}

func TestPipeDeliversInOrder(t *testing.T) {
	front, back := Pipe()
	defer front.Close()

	wait := collect(t, back)
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, front.PostMessage([]byte(m)))
	}
	require.Equal(t, []string{"a", "b", "c"}, wait(3))
}

func TestPipeClose(t *testing.T) {
	front, back := Pipe()
	require.NoError(t, back.Close())
	<-front.Done()
	require.ErrorIs(t, front.PostMessage([]byte("x")), ErrClosed)
}

func TestStreamHostBothDirections(t *testing.T) {
	c1, c2 := net.Pipe()
	front := NewFrontendStream(c1, protocol.CodecTypeJSON, WithHeartbeat(10*time.Millisecond))
	back := NewHostStream(c2, protocol.CodecTypeJSON)
	defer front.Close()

	requests := collect(t, back)
	responses := collect(t, front)

	require.NoError(t, front.PostMessage([]byte(`{"id":"1"}`)))
	require.Equal(t, []string{`{"id":"1"}`}, requests(1))

	require.NoError(t, back.PostMessage([]byte(`{"id":"1","result":1}`)))
	require.Equal(t, []string{`{"id":"1","result":1}`}, responses(1))
}

func TestStreamHostClosesOnPeerClose(t *testing.T) {
	c1, c2 := net.Pipe()
	front := NewFrontendStream(c1, protocol.CodecTypeJSON)
	front.AddListener(func([]byte) {})

	require.NoError(t, c2.Close())
	select {
	case <-front.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("stream host did not notice peer close")
	}
	require.ErrorIs(t, front.PostMessage([]byte("x")), ErrClosed)
}

func TestWebSocketHost(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		back := NewWebSocketHost(conn, false, zerolog.Nop())
		back.AddListener(func(data []byte) {
			_ = back.PostMessage([]byte(strings.ToUpper(string(data))))
		})
		<-back.Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	front, err := DialWebSocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), false)
	require.NoError(t, err)
	defer front.Close()

	wait := collect(t, front)
	require.NoError(t, front.PostMessage([]byte("ping")))
	require.Equal(t, []string{"PING"}, wait(1))
}

func TestPubSubHostOverGoChannel(t *testing.T) {
	ps := NewGoChannel(zerolog.Nop())
	defer ps.Close()

	reqTopic, respTopic := Topics("demo")
	back := NewPubSubHost(ps, ps, respTopic, reqTopic, zerolog.Nop())
	front := NewPubSubHost(ps, ps, reqTopic, respTopic, zerolog.Nop())
	defer back.Close()
	defer front.Close()

	requests := collect(t, back)
	responses := collect(t, front)

	require.NoError(t, front.PostMessage([]byte("req")))
	require.Equal(t, []string{"req"}, requests(1))
	require.NoError(t, back.PostMessage([]byte("resp")))
	require.Equal(t, []string{"resp"}, responses(1))

	require.NoError(t, front.Close())
	require.ErrorIs(t, front.PostMessage([]byte("late")), ErrClosed)
}
