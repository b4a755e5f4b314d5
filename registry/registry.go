// Package registry provides service discovery for REPE servers: servers
// announce their advertise address under a service name, clients look the
// addresses up before dialing.
package registry

type ServiceInstance struct {
	Addr    string
	Weight  int // weight for load balancing
	Version string
}

type Registry interface {
	Register(serviceName string, instance ServiceInstance, ttl int64) error
	Deregister(serviceName string, addr string) error
	Discover(serviceName string) ([]ServiceInstance, error)
	Watch(serviceName string) <-chan []ServiceInstance
}

// StaticRegistry serves a fixed instance list for a single service name.
// It is the no-etcd path: direct addresses from config or tests.
type StaticRegistry struct {
	service   string
	instances []ServiceInstance
}

func NewStaticRegistry(service string, addrs ...string) *StaticRegistry {
	instances := make([]ServiceInstance, 0, len(addrs))
	for _, addr := range addrs {
		instances = append(instances, ServiceInstance{Addr: addr, Weight: 1})
	}
	return &StaticRegistry{service: service, instances: instances}
}

func (r *StaticRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	if serviceName == r.service {
		r.instances = append(r.instances, instance)
	}
	return nil
}

func (r *StaticRegistry) Deregister(serviceName string, addr string) error {
	if serviceName != r.service {
		return nil
	}
	kept := r.instances[:0]
	for _, inst := range r.instances {
		if inst.Addr != addr {
			kept = append(kept, inst)
		}
	}
	r.instances = kept
	return nil
}

func (r *StaticRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	if serviceName != r.service {
		return nil, nil
	}
	out := make([]ServiceInstance, len(r.instances))
	copy(out, r.instances)
	return out, nil
}

// Watch never fires; a static list does not change behind the caller's back.
func (r *StaticRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	return make(chan []ServiceInstance)
}
