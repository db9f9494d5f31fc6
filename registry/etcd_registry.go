package registry

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/ezi/"

// EtcdRegistry stores one key per host instance:
//
//	Key:   /ezi/{app}/{instanceKey}
//	Value: JSON-encoded HostInstance
//
// Keys are attached to a TTL lease that is kept alive while the host runs;
// a crashed host disappears when its lease expires.
type EtcdRegistry struct {
	client *clientv3.Client

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // key → lease, revoked on Deregister
}

func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, errors.Wrap(err, "etcd client")
	}
	return &EtcdRegistry{client: c, leases: make(map[string]clientv3.LeaseID)}, nil
}

func instanceKey(app, key string) string {
	return keyPrefix + app + "/" + key
}

// Register writes the instance under a fresh lease and keeps the lease alive
// until Deregister or Close.
func (r *EtcdRegistry) Register(ctx context.Context, app string, instance HostInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return errors.Wrap(err, "grant lease")
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := instanceKey(app, instance.Key())
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "put %s", key)
	}

	// KeepAlive must outlive the registering request, so it gets its own context.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return errors.Wrap(err, "keep lease alive")
	}
	go func() {
		for range ch {
		}
		log.Debug().Str("component", "registry").Str("key", key).Msg("lease keepalive stopped")
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	return nil
}

func (r *EtcdRegistry) Deregister(ctx context.Context, app string, key string) error {
	k := instanceKey(app, key)
	r.mu.Lock()
	lease, ok := r.leases[k]
	delete(r.leases, k)
	r.mu.Unlock()

	if ok {
		if _, err := r.client.Revoke(ctx, lease); err != nil {
			return errors.Wrapf(err, "revoke lease for %s", k)
		}
		return nil
	}
	if _, err := r.client.Delete(ctx, k); err != nil {
		return errors.Wrapf(err, "delete %s", k)
	}
	return nil
}

// Watch emits the full instance list after every change under the app prefix.
// The channel closes when ctx ends.
func (r *EtcdRegistry) Watch(ctx context.Context, app string) <-chan []HostInstance {
	ch := make(chan []HostInstance, 1)
	prefix := keyPrefix + app + "/"

	go func() {
		defer close(ch)
		for range r.client.Watch(ctx, prefix, clientv3.WithPrefix()) {
			instances, err := r.Discover(ctx, app)
			if err != nil {
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

func (r *EtcdRegistry) Discover(ctx context.Context, app string) ([]HostInstance, error) {
	resp, err := r.client.Get(ctx, keyPrefix+app+"/", clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Wrap(err, "discover")
	}

	instances := make([]HostInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance HostInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
