package loadbalance

import (
	"math/rand"

	"github.com/repe-org/repe-go/registry"
)

// WeightedRandomBalancer picks instances with probability proportional to
// their registered weight. Instances without a weight count as 1, so a list
// of unweighted instances degrades to uniform random.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	weights := make([]int, len(instances))
	total := 0
	for i, inst := range instances {
		w := inst.Weight
		if w <= 0 {
			w = 1
		}
		weights[i] = w
		total += w
	}

	r := rand.Intn(total)
	for i := range instances {
		r -= weights[i]
		if r < 0 {
			return &instances[i], nil
		}
	}

	return &instances[len(instances)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
