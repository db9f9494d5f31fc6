package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"ezi-bridge/registry"
)

// ConsistentHashBalancer maps keys onto a hash ring of host instances.
// Each instance owns replicas virtual nodes so a handful of hosts still
// split the ring evenly.
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.RWMutex
	ring  []uint32
	nodes map[uint32]registry.HostInstance
}

func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.HostInstance),
	}
}

func (b *ConsistentHashBalancer) Add(instances ...registry.HostInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Key(), i)))
			if _, taken := b.nodes[hash]; !taken {
				b.ring = append(b.ring, hash)
			}
			b.nodes[hash] = inst
		}
	}
	sort.Slice(b.ring, func(i, j int) bool { return b.ring[i] < b.ring[j] })
}

func (b *ConsistentHashBalancer) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ring := b.ring[:0]
	for _, hash := range b.ring {
		if b.nodes[hash].Key() == key {
			delete(b.nodes, hash)
			continue
		}
		ring = append(ring, hash)
	}
	b.ring = ring
}

// Pick returns the instance owning key: the first virtual node clockwise
// from the key's hash, wrapping past the end of the ring.
func (b *ConsistentHashBalancer) Pick(key string) (*registry.HostInstance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	inst := b.nodes[b.ring[idx]]
	return &inst, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent-hash"
}

// StickyBalancer is a Balancer that always sends the same session key to the
// same instance among whatever instances are currently advertised.
type StickyBalancer struct {
	Key string
}

func (b *StickyBalancer) Pick(instances []registry.HostInstance) (*registry.HostInstance, error) {
	ring := NewConsistentHashBalancer()
	ring.Add(instances...)
	return ring.Pick(b.Key)
}

func (b *StickyBalancer) Name() string {
	return "sticky"
}
