package registry

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T, reg Registry) {
	ctx := context.Background()
	inst1 := HostInstance{ID: "host-a", Addr: "127.0.0.1:8001", Scheme: "tcp", Weight: 10, Version: "1.0.0"}
	inst2 := HostInstance{ID: "host-b", Addr: "127.0.0.1:8002", Scheme: "ws", Path: "/ipc", Weight: 5, Version: "1.0.0"}

	require.NoError(t, reg.Register(ctx, "demo", inst1, 10))
	require.NoError(t, reg.Register(ctx, "demo", inst2, 10))

	instances, err := reg.Discover(ctx, "demo")
	require.NoError(t, err)
	require.Len(t, instances, 2)

	require.NoError(t, reg.Deregister(ctx, "demo", inst1.Key()))
	require.Eventually(t, func() bool {
		instances, err = reg.Discover(ctx, "demo")
		return err == nil && len(instances) == 1
	}, 2*time.Second, 20*time.Millisecond)
	require.Equal(t, inst2, instances[0])

	require.NoError(t, reg.Deregister(ctx, "demo", inst2.Key()))
}

func TestMemoryRegistry(t *testing.T) {
	testRegistry(t, NewMemoryRegistry())
}

func TestMemoryRegistryWatch(t *testing.T) {
	reg := NewMemoryRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	updates := reg.Watch(ctx, "demo")
	require.NoError(t, reg.Register(ctx, "demo", HostInstance{ID: "a", Addr: ":1", Scheme: "tcp"}, 10))

	select {
	case got := <-updates:
		require.Len(t, got, 1)
	case <-time.After(time.Second):
		t.Fatal("no watch update")
	}

	cancel()
	select {
	case _, open := <-updates:
		require.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}

func TestHostInstanceKey(t *testing.T) {
	require.Equal(t, "abc", HostInstance{ID: "abc", Addr: ":1"}.Key())
	require.Equal(t, "ws://:1", HostInstance{Addr: ":1", Scheme: "ws"}.Key())
}

// Needs a running etcd: EZI_ETCD_ENDPOINTS=127.0.0.1:2379
func TestEtcdRegistry(t *testing.T) {
	endpoints := os.Getenv("EZI_ETCD_ENDPOINTS")
	if endpoints == "" {
		t.Skip("EZI_ETCD_ENDPOINTS not set")
	}
	reg, err := NewEtcdRegistry(strings.Split(endpoints, ","))
	require.NoError(t, err)
	defer reg.Close()

	testRegistry(t, reg)
}
