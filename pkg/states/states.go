// Package states holds the States Cache (§4.6): the last runtime status
// observed for pools, replicas and nexuses, refreshed in bulk by the
// node-polling subsystem. It is never authoritative — the spec and the
// store are — so readers must treat a snapshot as advisory and resolve any
// conflict with a spec in the spec engine's favor.
package states

import (
	"sync"

	"github.com/cuemby/agent-core/pkg/types"
)

// PoolState, ReplicaState and NexusState are the observed counterparts of
// their Spec siblings: identity plus whatever the node reported at the
// last poll.
type PoolState struct {
	ID       types.PoolID
	Node     types.NodeID
	Status   types.RuntimeStatus
	Capacity uint64
	Used     uint64
}

func (s PoolState) UUID() string { return string(s.ID) }

type ReplicaState struct {
	ID     types.ReplicaID
	Pool   types.PoolID
	Status types.RuntimeStatus
	Share  types.Protocol
	URI    string
}

func (s ReplicaState) UUID() string { return string(s.ID) }

type NexusState struct {
	ID       types.NexusID
	Node     types.NodeID
	Status   types.RuntimeStatus
	Share    types.Protocol
	Children []types.ChildUri
}

func (s NexusState) UUID() string { return string(s.ID) }

// Cache is the concurrency-safe holder for the three observed-state
// collections. A single RWMutex covers all three maps: polling refreshes
// are infrequent relative to reads, and the three kinds are small enough
// that one lock is simpler than three without a measurable cost.
type Cache struct {
	mu       sync.RWMutex
	pools    map[types.PoolID]PoolState
	replicas map[types.ReplicaID]ReplicaState
	nexuses  map[types.NexusID]NexusState
}

func New() *Cache {
	return &Cache{
		pools:    make(map[types.PoolID]PoolState),
		replicas: make(map[types.ReplicaID]ReplicaState),
		nexuses:  make(map[types.NexusID]NexusState),
	}
}

// UpdatePools replaces the entire pool-state collection, matching the
// resource map's clear-then-repopulate semantics so pools the latest poll
// no longer reports (e.g. a crashed node) drop out of the cache.
func (c *Cache) UpdatePools(pools []PoolState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pools = make(map[types.PoolID]PoolState, len(pools))
	for _, p := range pools {
		c.pools[p.ID] = p
	}
}

func (c *Cache) UpdateReplicas(replicas []ReplicaState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replicas = make(map[types.ReplicaID]ReplicaState, len(replicas))
	for _, r := range replicas {
		c.replicas[r.ID] = r
	}
}

func (c *Cache) UpdateNexuses(nexuses []NexusState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nexuses = make(map[types.NexusID]NexusState, len(nexuses))
	for _, n := range nexuses {
		c.nexuses[n.ID] = n
	}
}

func (c *Cache) Pool(id types.PoolID) (PoolState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.pools[id]
	return p, ok
}

func (c *Cache) Replica(id types.ReplicaID) (ReplicaState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.replicas[id]
	return r, ok
}

func (c *Cache) Nexus(id types.NexusID) (NexusState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n, ok := c.nexuses[id]
	return n, ok
}

// Pools returns a point-in-time snapshot of every observed pool state.
func (c *Cache) Pools() []PoolState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]PoolState, 0, len(c.pools))
	for _, p := range c.pools {
		out = append(out, p)
	}
	return out
}

// Replicas returns a point-in-time snapshot of every observed replica
// state.
func (c *Cache) Replicas() []ReplicaState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ReplicaState, 0, len(c.replicas))
	for _, r := range c.replicas {
		out = append(out, r)
	}
	return out
}

// Nexuses returns a point-in-time snapshot of every observed nexus state.
func (c *Cache) Nexuses() []NexusState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]NexusState, 0, len(c.nexuses))
	for _, n := range c.nexuses {
		out = append(out, n)
	}
	return out
}
