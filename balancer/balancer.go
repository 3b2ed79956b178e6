// Package balancer provides server selection over a fleet snapshot.
//
// Thread-safety: a sync.Mutex serialises the round-robin index, so Select
// may be called from any number of goroutines simultaneously without data
// races. The index advances monotonically and is read modulo the current
// eligible-set size; a stale modulus after a fleet change is tolerable
// because the next selection self-corrects.
package balancer

import (
	"sync"

	"github.com/firasghr/GoGameGateway/registry"
)

// Policy names a selection strategy.
type Policy string

const (
	// PolicyRoundRobin cycles through the eligible servers in snapshot
	// order. This is the shipped default.
	PolicyRoundRobin Policy = "round-robin"

	// PolicyLeastConnections picks the eligible server with the fewest
	// active connections, breaking ties by snapshot index order so the
	// choice is deterministic with respect to the snapshot.
	PolicyLeastConnections Policy = "least-connections"
)

// ParsePolicy maps a config string to a Policy, defaulting to round-robin
// for unknown values.
func ParsePolicy(s string) Policy {
	if Policy(s) == PolicyLeastConnections {
		return PolicyLeastConnections
	}
	return PolicyRoundRobin
}

// Balancer selects the next assignment target.
type Balancer struct {
	policy Policy

	mu   sync.Mutex
	next uint64
}

// New creates a Balancer with the given policy.
func New(policy Policy) *Balancer {
	return &Balancer{policy: policy}
}

// Select returns the next server from the eligible snapshot. The second
// result is false when the snapshot is empty. Callers pass servers that
// are already filtered for liveness and capacity.
func (b *Balancer) Select(eligible []registry.GameServer) (registry.GameServer, bool) {
	if len(eligible) == 0 {
		return registry.GameServer{}, false
	}

	switch b.policy {
	case PolicyLeastConnections:
		best := 0
		for i := 1; i < len(eligible); i++ {
			if eligible[i].ActiveConnections < eligible[best].ActiveConnections {
				best = i
			}
		}
		return eligible[best], true

	default:
		b.mu.Lock()
		idx := b.next % uint64(len(eligible))
		b.next++
		b.mu.Unlock()
		return eligible[idx], true
	}
}
