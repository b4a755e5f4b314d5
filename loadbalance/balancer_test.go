package loadbalance

import (
	"errors"
	"testing"

	"github.com/repe-org/repe-go/registry"
)

func instances(addrs ...string) []registry.ServiceInstance {
	out := make([]registry.ServiceInstance, 0, len(addrs))
	for _, addr := range addrs {
		out = append(out, registry.ServiceInstance{Addr: addr, Weight: 1})
	}
	return out
}

func TestRoundRobinCycles(t *testing.T) {
	b := &RoundRobinBalancer{}
	insts := instances("a:1", "b:1", "c:1")

	seen := make(map[string]int)
	for i := 0; i < 9; i++ {
		inst, err := b.Pick(insts)
		if err != nil {
			t.Fatal(err)
		}
		seen[inst.Addr]++
	}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		if seen[addr] != 3 {
			t.Errorf("%s picked %d times, want 3", addr, seen[addr])
		}
	}
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	if _, err := b.Pick(nil); !errors.Is(err, ErrNoInstances) {
		t.Errorf("got %v, want ErrNoInstances", err)
	}
}

func TestWeightedRandomRespectsWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	insts := []registry.ServiceInstance{
		{Addr: "heavy:1", Weight: 9},
		{Addr: "light:1", Weight: 1},
	}

	seen := make(map[string]int)
	for i := 0; i < 1000; i++ {
		inst, err := b.Pick(insts)
		if err != nil {
			t.Fatal(err)
		}
		seen[inst.Addr]++
	}
	// heavy should win roughly 9 of 10 picks; allow generous slack.
	if seen["heavy:1"] < 800 {
		t.Errorf("heavy picked only %d of 1000", seen["heavy:1"])
	}
	if seen["light:1"] == 0 {
		t.Error("light never picked")
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	insts := []registry.ServiceInstance{
		{Addr: "a:1"},
		{Addr: "b:1"},
	}
	// Weightless instances count as weight 1; this must not panic.
	for i := 0; i < 100; i++ {
		if _, err := b.Pick(insts); err != nil {
			t.Fatal(err)
		}
	}
}

func TestWeightedRandomEmpty(t *testing.T) {
	b := &WeightedRandomBalancer{}
	if _, err := b.Pick(nil); !errors.Is(err, ErrNoInstances) {
		t.Errorf("got %v, want ErrNoInstances", err)
	}
}

func TestBalancerNames(t *testing.T) {
	if got := (&RoundRobinBalancer{}).Name(); got != "RoundRobin" {
		t.Errorf("name: %q", got)
	}
	if got := (&WeightedRandomBalancer{}).Name(); got != "WeightedRandom" {
		t.Errorf("name: %q", got)
	}
}
