// Package loadbalance provides strategies for spreading client calls across
// discovered REPE server instances.
package loadbalance

import "github.com/repe-org/repe-go/registry"

// Balancer picks one instance per call. Implementations must be
// goroutine-safe; the client calls Pick on every RPC.
type Balancer interface {
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name identifies the strategy for logging.
	Name() string
}
