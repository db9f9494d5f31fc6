package client_test

import (
	"context"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ezi-bridge/channel"
	"ezi-bridge/client"
	"ezi-bridge/codec"
	"ezi-bridge/loadbalance"
	"ezi-bridge/middleware"
	"ezi-bridge/registry"
	"ezi-bridge/server"
	"ezi-bridge/transport"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type calc struct{}

func (c *calc) Add(ctx context.Context, args *addArgs, reply *int) error {
	*reply = args.A + args.B
	return nil
}

func (c *calc) Fail(ctx context.Context, args *addArgs, reply *int) error {
	return errors.New("boom")
}

func newCalcServer(t testing.TB, c codec.Codec) *server.Server {
	svr := server.NewServer(server.WithCodec(c), server.WithLogger(zerolog.Nop()))
	svr.Use(middleware.Logging(zerolog.Nop()))
	svr.Use(middleware.Timeout(time.Second))
	require.NoError(t, svr.Register("calc", &calc{}))
	return svr
}

func newClient(t testing.TB, h channel.Host, c codec.Codec) *client.Client {
	ch, err := channel.New(channel.NewSlot(h), channel.WithCodec(c), channel.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	return client.New(ch, client.WithLogger(zerolog.Nop()))
}

func exercise(t *testing.T, cl *client.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	calls := make([]*client.Call, 20)
	for i := range calls {
		calls[i] = cl.Call("calc", "add", addArgs{A: i, B: i})
	}
	for i, call := range calls {
		var sum int
		require.NoError(t, call.Decode(ctx, &sum))
		require.Equal(t, 2*i, sum)
	}

	err := cl.Invoke(ctx, "calc", "fail", addArgs{}, nil)
	require.ErrorContains(t, err, "boom")

	err = cl.Invoke(ctx, "calc", "missing", addArgs{}, nil)
	require.ErrorContains(t, err, "unknown function: calc.missing")
	require.Equal(t, 0, cl.Pending())
}

func TestBridgeOverMemoryPipe(t *testing.T) {
	for _, c := range []codec.Codec{&codec.JSONCodec{}, &codec.BinaryCodec{}} {
		t.Run(c.Type().String(), func(t *testing.T) {
			front, back := transport.Pipe()
			defer front.Close()

			svr := newCalcServer(t, c)
			go svr.ServeHost(context.Background(), back)

			exercise(t, newClient(t, front, c))
		})
	}
}

func TestBridgeOverTCPWithDiscovery(t *testing.T) {
	svr := newCalcServer(t, &codec.BinaryCodec{})
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.ServeListener(listener)
	defer svr.Shutdown(time.Second)

	reg := registry.NewMemoryRegistry()
	ctx := context.Background()
	require.NoError(t, svr.Advertise(ctx, reg, "demo", registry.HostInstance{
		ID:     "host-1",
		Addr:   listener.Addr().String(),
		Scheme: "tcp",
	}, 10))

	host, err := client.Dial(ctx, reg, &loadbalance.RoundRobinBalancer{}, "demo", codec.CodecTypeBinary)
	require.NoError(t, err)
	exercise(t, newClient(t, host, &codec.BinaryCodec{}))
}

func TestBridgeOverWebSocket(t *testing.T) {
	svr := newCalcServer(t, &codec.JSONCodec{})
	srv := httptest.NewServer(svr.WebSocketHandler())
	defer srv.Close()
	defer svr.Shutdown(time.Second)

	inst := registry.HostInstance{Addr: strings.TrimPrefix(srv.URL, "http://"), Scheme: "ws", Path: "/"}
	host, err := client.DialInstance(context.Background(), inst, codec.CodecTypeJSON)
	require.NoError(t, err)
	exercise(t, newClient(t, host, &codec.JSONCodec{}))
}

func TestBridgeOverPubSub(t *testing.T) {
	ps := transport.NewGoChannel(zerolog.Nop())
	defer ps.Close()

	reqTopic, respTopic := transport.Topics("demo")
	back := transport.NewPubSubHost(ps, ps, respTopic, reqTopic, zerolog.Nop())
	front := transport.NewPubSubHost(ps, ps, reqTopic, respTopic, zerolog.Nop())
	defer front.Close()

	svr := newCalcServer(t, &codec.JSONCodec{})
	// attach synchronously: gochannel drops messages published before a subscription exists
	require.NoError(t, svr.Attach(context.Background(), back))
	defer back.Close()

	exercise(t, newClient(t, front, &codec.JSONCodec{}))
}

func TestDialWithoutHosts(t *testing.T) {
	_, err := client.Dial(context.Background(), registry.NewMemoryRegistry(), &loadbalance.RoundRobinBalancer{}, "nobody", codec.CodecTypeJSON)
	require.ErrorIs(t, err, loadbalance.ErrNoInstances)
}

func TestDialUnknownScheme(t *testing.T) {
	_, err := client.DialInstance(context.Background(), registry.HostInstance{Addr: ":1", Scheme: "carrier-pigeon"}, codec.CodecTypeJSON)
	require.Error(t, err)
}

func TestDialFailureReturnsNilHost(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	for _, scheme := range []string{"tcp", "ws"} {
		t.Run(scheme, func(t *testing.T) {
			h, err := client.DialInstance(context.Background(), registry.HostInstance{Addr: addr, Scheme: scheme}, codec.CodecTypeJSON)
			require.Error(t, err)
			require.True(t, h == nil, "failed dial must return an untyped nil host, got %T", h)
		})
	}
}
