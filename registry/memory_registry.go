package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry keeps instances in process. TTLs are ignored.
// It serves single-machine setups and tests.
type MemoryRegistry struct {
	mu       sync.Mutex
	apps     map[string]map[string]HostInstance
	watchers map[string][]chan []HostInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		apps:     make(map[string]map[string]HostInstance),
		watchers: make(map[string][]chan []HostInstance),
	}
}

func (r *MemoryRegistry) Register(ctx context.Context, app string, instance HostInstance, ttl int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.apps[app] == nil {
		r.apps[app] = make(map[string]HostInstance)
	}
	r.apps[app][instance.Key()] = instance
	r.notifyLocked(app)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, app string, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps[app], key)
	r.notifyLocked(app)
	return nil
}

func (r *MemoryRegistry) Discover(ctx context.Context, app string) ([]HostInstance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked(app), nil
}

func (r *MemoryRegistry) Watch(ctx context.Context, app string) <-chan []HostInstance {
	ch := make(chan []HostInstance, 1)
	r.mu.Lock()
	r.watchers[app] = append(r.watchers[app], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		watchers := r.watchers[app]
		for i, w := range watchers {
			if w == ch {
				r.watchers[app] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

func (r *MemoryRegistry) listLocked(app string) []HostInstance {
	instances := make([]HostInstance, 0, len(r.apps[app]))
	for _, inst := range r.apps[app] {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Key() < instances[j].Key()
	})
	return instances
}

// notifyLocked replaces any unread snapshot with the latest one.
func (r *MemoryRegistry) notifyLocked(app string) {
	snapshot := r.listLocked(app)
	for _, ch := range r.watchers[app] {
		select {
		case <-ch:
		default:
		}
		ch <- snapshot
	}
}
