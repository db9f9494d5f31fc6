package loadbalance

import (
	"math/rand/v2"

	"ezi-bridge/registry"
)

// WeightedRandomBalancer picks proportionally to Weight. Instances without a
// positive weight count as weight 1.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.HostInstance) (*registry.HostInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	total := 0
	for _, inst := range instances {
		total += weight(inst)
	}

	r := rand.IntN(total)
	for i := range instances {
		r -= weight(instances[i])
		if r < 0 {
			return &instances[i], nil
		}
	}
	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "weighted-random"
}

func weight(inst registry.HostInstance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}
