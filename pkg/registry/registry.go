// Package registry composes the pieces the rest of the core agent depends
// on: the persisted spec engines for every resource kind, the observed
// States Cache, one gRPC context per known node, and the background
// reconciler's timing. This mirrors the source's ResourceSpecsLocked /
// Registry split, collapsed into a single type since Go has no equivalent
// need for the separate lock-wrapper layer once each engine already guards
// its own resource map.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuemby/agent-core/pkg/kvstore"
	"github.com/cuemby/agent-core/pkg/resourcemap"
	"github.com/cuemby/agent-core/pkg/rpc"
	"github.com/cuemby/agent-core/pkg/specs"
	"github.com/cuemby/agent-core/pkg/states"
	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// Timing configures the Dirty-Spec Reconciler's poll cadence.
type Timing struct {
	// ReconcilePeriod is the sleep between passes when the previous pass
	// found and fixed at least one dirty spec.
	ReconcilePeriod time.Duration
	// ReconcileIdlePeriod is the longer sleep used when the previous pass
	// found nothing to do.
	ReconcileIdlePeriod time.Duration
}

// Registry is the central composition root: one spec engine per resource
// kind, the observed-state cache, per-node gRPC contexts, and the store
// handle they all share.
type Registry struct {
	store kvstore.Store

	Pools    *specs.Engine[*types.PoolSpec, types.CreatePool, struct{}]
	Replicas *specs.Engine[*types.ReplicaSpec, types.CreateReplica, types.ReplicaUpdateOp]
	Nexuses  *specs.Engine[*types.NexusSpec, types.CreateNexus, types.NexusUpdateOp]
	Volumes  *specs.Engine[*types.VolumeSpec, types.CreateVolume, types.VolumeUpdateOp]

	nodes *resourcemap.Map[types.NodeID, *types.NodeSpec]
	obs   *states.Cache

	timing Timing

	grpcTimeouts rpc.Timeouts
	mu           sync.Mutex
	grpcCtx      map[types.NodeID]*rpc.Context

	stopOnce sync.Once
	stopCh   chan struct{}
}

func New(store kvstore.Store, timing Timing, grpcTimeouts rpc.Timeouts) *Registry {
	poolsMap := resourcemap.New[string, *types.PoolSpec]()
	replicasMap := resourcemap.New[string, *types.ReplicaSpec]()
	nexusesMap := resourcemap.New[string, *types.NexusSpec]()
	volumesMap := resourcemap.New[string, *types.VolumeSpec]()
	nodesMap := resourcemap.New[types.NodeID, *types.NodeSpec]()

	return &Registry{
		store:        store,
		Pools:        specs.New[*types.PoolSpec, types.CreatePool, struct{}](svcerr.ResourcePool, poolsMap, store),
		Replicas:     specs.New[*types.ReplicaSpec, types.CreateReplica, types.ReplicaUpdateOp](svcerr.ResourceReplica, replicasMap, store),
		Nexuses:      specs.New[*types.NexusSpec, types.CreateNexus, types.NexusUpdateOp](svcerr.ResourceNexus, nexusesMap, store),
		Volumes:      specs.New[*types.VolumeSpec, types.CreateVolume, types.VolumeUpdateOp](svcerr.ResourceVolume, volumesMap, store),
		nodes:        nodesMap,
		obs:          states.New(),
		timing:       timing,
		grpcTimeouts: grpcTimeouts,
		grpcCtx:      make(map[types.NodeID]*rpc.Context),
		stopCh:       make(chan struct{}),
	}
}

// States exposes the observed-state cache to the node-polling subsystem
// and to handlers composing a full Pool/Replica/Nexus view.
func (r *Registry) States() *states.Cache { return r.obs }

// TimingConfig exposes the reconciler's configured poll cadence.
func (r *Registry) TimingConfig() Timing { return r.timing }

// Init reloads every persisted kind from the store into its resource map
// (§4.5 "init"): for each kind, prefix-scan "{Kind}Spec/" and deserialize
// each value. A deserialization error aborts startup — an operator must
// repair the store rather than have the agent silently drop a resource.
func (r *Registry) Init(ctx context.Context) error {
	if err := loadInto(ctx, r.store, "NodeSpec/", r.nodes,
		func() *types.NodeSpec { return &types.NodeSpec{} },
		func(n *types.NodeSpec) types.NodeID { return n.ID }); err != nil {
		return fmt.Errorf("registry init: nodes: %w", err)
	}
	if err := loadInto(ctx, r.store, "PoolSpec/", r.Pools.Resources(),
		func() *types.PoolSpec { return &types.PoolSpec{} },
		func(p *types.PoolSpec) string { return string(p.ID) }); err != nil {
		return fmt.Errorf("registry init: pools: %w", err)
	}
	if err := loadInto(ctx, r.store, "ReplicaSpec/", r.Replicas.Resources(),
		func() *types.ReplicaSpec { return &types.ReplicaSpec{} },
		func(rs *types.ReplicaSpec) string { return string(rs.ID) }); err != nil {
		return fmt.Errorf("registry init: replicas: %w", err)
	}
	if err := loadInto(ctx, r.store, "NexusSpec/", r.Nexuses.Resources(),
		func() *types.NexusSpec { return &types.NexusSpec{} },
		func(n *types.NexusSpec) string { return string(n.ID) }); err != nil {
		return fmt.Errorf("registry init: nexuses: %w", err)
	}
	if err := loadInto(ctx, r.store, "VolumeSpec/", r.Volumes.Resources(),
		func() *types.VolumeSpec { return &types.VolumeSpec{} },
		func(v *types.VolumeSpec) string { return string(v.ID) }); err != nil {
		return fmt.Errorf("registry init: volumes: %w", err)
	}
	return nil
}

// loadInto prefix-scans the store for kind's objects, strictly decodes each
// into a freshly allocated V (via newItem, since a generic pointer type has
// no usable zero value to decode into), and bulk-replaces into's contents.
// Any deserialization error aborts the whole Init call.
func loadInto[K comparable, V resourcemap.Entry](
	ctx context.Context, store kvstore.Store, prefix string,
	into *resourcemap.Map[K, V], newItem func() V, keyOf func(V) K,
) error {
	raw, err := store.GetValuesPrefix(ctx, prefix)
	if err != nil {
		return err
	}
	values := make([]V, 0, len(raw))
	for _, data := range raw {
		v := newItem()
		if err := kvstore.UnmarshalStrict(data, v); err != nil {
			return fmt.Errorf("deserialize %s: %w", prefix, err)
		}
		values = append(values, v)
	}
	into.Update(values, keyOf)
	return nil
}

// StoreObj persists spec at its natural key.
func (r *Registry) StoreObj(ctx context.Context, key string, spec any) error {
	return r.store.PutObj(ctx, key, spec)
}

// DeleteKV deletes the object at key.
func (r *Registry) DeleteKV(ctx context.Context, key string) error {
	return r.store.DeleteObj(ctx, key)
}

// ListPrefix prefix-scans the store directly, for callers (the Watch
// verbs in pkg/handlers) that persist their own kind outside the four
// spec engines.
func (r *Registry) ListPrefix(ctx context.Context, prefix string) ([][]byte, error) {
	return r.store.GetValuesPrefix(ctx, prefix)
}

// Nodes returns a snapshot of every registered node.
func (r *Registry) Nodes() []*types.NodeSpec { return r.nodes.ToSlice() }

// Node looks up a single node by id.
func (r *Registry) Node(id types.NodeID) (*types.NodeSpec, bool) {
	h := r.nodes.Get(id)
	if h == nil {
		return nil, false
	}
	return h.Peek(), true
}

// RegisterNode adds or replaces a node spec; see pkg/types/node.go for why
// this bypasses the full spec engine.
func (r *Registry) RegisterNode(ctx context.Context, n *types.NodeSpec) error {
	n.Status = types.Created(types.StatusOnline)
	if err := r.store.PutObj(ctx, n.Key(), n); err != nil {
		return svcerr.StoreSave(svcerr.ResourceNode, string(n.ID), err)
	}
	r.nodes.Insert(n.ID, n)
	return nil
}

// DeregisterNode removes a node spec and tears down its gRPC context.
func (r *Registry) DeregisterNode(ctx context.Context, id types.NodeID) error {
	if err := r.store.DeleteObj(ctx, "NodeSpec/"+string(id)); err != nil {
		return svcerr.StoreSave(svcerr.ResourceNode, string(id), err)
	}
	r.nodes.Remove(id)

	r.mu.Lock()
	ctxForNode, ok := r.grpcCtx[id]
	delete(r.grpcCtx, id)
	r.mu.Unlock()
	if ok {
		ctxForNode.Close()
	}
	return nil
}

// SetNodeRuntimeStatus records the node-polling subsystem's latest
// reachability observation. This is advisory runtime state layered onto
// the node's SpecStatus, the same way the States Cache is advisory for the
// other four kinds — it is never persisted, since a restart should re-probe
// rather than trust a stale liveness reading.
func (r *Registry) SetNodeRuntimeStatus(id types.NodeID, status types.RuntimeStatus) {
	h := r.nodes.Get(id)
	if h == nil {
		return
	}
	n := h.Lock()
	defer h.Unlock()
	n.Status.Runtime = status
	h.Set(n)
}

// NodeGRPC returns (lazily creating) the gRPC context for node.
func (r *Registry) NodeGRPC(id types.NodeID) (*rpc.Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.grpcCtx[id]; ok {
		return c, nil
	}
	n, ok := r.Node(id)
	if !ok {
		return nil, svcerr.NotFound(svcerr.ResourceNode, string(id))
	}
	c := rpc.NewContext(id, n.Endpoint, r.grpcTimeouts)
	r.grpcCtx[id] = c
	return c, nil
}

// Pool, Replica, Nexus and Volume are convenience lookups mirroring
// pool(id)/replica(id)/nexus(id)/volume(id) from §4.5.
func (r *Registry) Pool(id types.PoolID) (*types.PoolSpec, bool) {
	h := r.Pools.Resources().Get(string(id))
	if h == nil {
		return nil, false
	}
	return h.Peek(), true
}

func (r *Registry) Replica(id types.ReplicaID) (*types.ReplicaSpec, bool) {
	h := r.Replicas.Resources().Get(string(id))
	if h == nil {
		return nil, false
	}
	return h.Peek(), true
}

func (r *Registry) Nexus(id types.NexusID) (*types.NexusSpec, bool) {
	h := r.Nexuses.Resources().Get(string(id))
	if h == nil {
		return nil, false
	}
	return h.Peek(), true
}

func (r *Registry) Volume(id types.VolumeID) (*types.VolumeSpec, bool) {
	h := r.Volumes.Resources().Get(string(id))
	if h == nil {
		return nil, false
	}
	return h.Peek(), true
}

// NodeStatusCounts, PoolStateCounts, ReplicaStateCounts, NexusStateCounts
// and VolumeStateCounts feed pkg/metrics' Collector; each groups the live
// resource map by its coarse lifecycle state.
func (r *Registry) NodeStatusCounts() map[string]int {
	counts := make(map[string]int)
	for _, n := range r.nodes.ToSlice() {
		counts[string(n.Status.Lifecycle)]++
	}
	return counts
}

func (r *Registry) PoolStateCounts() map[string]int {
	counts := make(map[string]int)
	for _, p := range r.Pools.Resources().ToSlice() {
		counts[string(p.State())]++
	}
	return counts
}

func (r *Registry) ReplicaStateCounts() map[string]int {
	counts := make(map[string]int)
	for _, rs := range r.Replicas.Resources().ToSlice() {
		counts[string(rs.State())]++
	}
	return counts
}

func (r *Registry) NexusStateCounts() map[string]int {
	counts := make(map[string]int)
	for _, n := range r.Nexuses.Resources().ToSlice() {
		counts[string(n.State())]++
	}
	return counts
}

func (r *Registry) VolumeStateCounts() map[string]int {
	counts := make(map[string]int)
	for _, v := range r.Volumes.Resources().ToSlice() {
		counts[string(v.State())]++
	}
	return counts
}

// StoreOnline reports the backing store's liveness, for the Collector and
// /ready handler.
func (r *Registry) StoreOnline() bool { return r.store.Online() }

// Stop closes StopCh, which signals the reconciler and any other background
// loop selecting on it to exit.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// StopCh is exposed so the reconciler (and tests) can select on shutdown.
func (r *Registry) StopCh() <-chan struct{} { return r.stopCh }

// PlacePool chooses a pool for a new replica: the Online pool with the
// most free capacity, among those on a node not already holding a replica
// for the same volume. This is a deliberately small policy — the pack's
// original_source excerpt did not include a placement module, so it is
// recorded in DESIGN.md as a from-scratch decision rather than grounded in
// a specific source file — but it keeps the invariant that a volume's
// replicas never collapse onto a single node.
func (r *Registry) PlacePool(excludeNodes map[types.NodeID]struct{}, sizeBytes uint64) (*types.PoolSpec, error) {
	var best *types.PoolSpec
	var bestFree uint64

	for _, p := range r.Pools.Resources().ToSlice() {
		if p.State() != types.LifecycleCreated {
			continue
		}
		if _, excluded := excludeNodes[p.Node]; excluded {
			continue
		}
		st, ok := r.obs.Pool(p.ID)
		if !ok || st.Status != types.StatusOnline {
			continue
		}
		free := st.Capacity - st.Used
		if free < sizeBytes {
			continue
		}
		if best == nil || free > bestFree {
			best, bestFree = p, free
		}
	}
	if best == nil {
		return nil, svcerr.NotEnoughResources(fmt.Sprintf("no online pool with %d bytes free", sizeBytes))
	}
	return best, nil
}

