package loadbalance

import (
	"errors"
	"sync/atomic"

	"github.com/repe-org/repe-go/registry"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// RoundRobinBalancer distributes calls evenly across instances in order,
// using an atomic counter for lock-free selection.
type RoundRobinBalancer struct {
	counter atomic.Int64
}

func (b *RoundRobinBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := b.counter.Add(1) % int64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
