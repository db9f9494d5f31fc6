// Package loadbalance picks which host instance a front-end connects to when
// several hosts of the same application are advertised.
//
//   - RoundRobin:     spread new front-ends evenly
//   - WeightedRandom: hosts with more capacity get proportionally more front-ends
//   - ConsistentHash: the same session key always lands on the same host
package loadbalance

import (
	"ezi-bridge/registry"

	"github.com/pkg/errors"
)

var ErrNoInstances = errors.New("no host instances available")

// Balancer must be safe for concurrent use.
type Balancer interface {
	Pick(instances []registry.HostInstance) (*registry.HostInstance, error)
	Name() string
}

// ByName resolves a balancer from its config name.
func ByName(name string) (Balancer, error) {
	switch name {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	default:
		return nil, errors.Errorf("unknown balancer %q", name)
	}
}
