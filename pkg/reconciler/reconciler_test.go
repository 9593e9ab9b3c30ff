package reconciler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/agent-core/pkg/kvstore"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/rpc"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	store, err := kvstore.Open(path, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	reg := registry.New(store, registry.Timing{ReconcilePeriod: time.Millisecond, ReconcileIdlePeriod: time.Millisecond},
		rpc.Timeouts{Connect: time.Second, Request: time.Second})
	require.NoError(t, reg.Init(context.Background()))
	return reg
}

func TestReconcileResolvesDirtyReplicaCreate(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Replicas.StartCreate(ctx, "r1", &types.CreateReplica{ID: "r1", Pool: "p1"}, types.ReplicaSpecFromCreate)
	require.NoError(t, err)

	h := reg.Replicas.Resources().Get("r1")
	spec := h.Lock()
	spec.SetOpResult(true)
	h.Set(spec)
	h.Unlock()
	require.True(t, spec.Dirty())

	rec := NewReconciler(reg)
	fixed := rec.reconcile()
	require.Equal(t, 1, fixed)

	rs, ok := reg.Replica("r1")
	require.True(t, ok)
	require.True(t, rs.State().IsCreated())
	require.False(t, rs.Dirty())
}

func TestReconcileResolvesDirtyReplicaCreateFailure(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Replicas.StartCreate(ctx, "r1", &types.CreateReplica{ID: "r1", Pool: "p1"}, types.ReplicaSpecFromCreate)
	require.NoError(t, err)

	h := reg.Replicas.Resources().Get("r1")
	spec := h.Lock()
	spec.SetOpResult(false)
	h.Set(spec)
	h.Unlock()

	rec := NewReconciler(reg)
	fixed := rec.reconcile()
	require.Equal(t, 1, fixed)

	rs, ok := reg.Replica("r1")
	require.True(t, ok)
	require.True(t, rs.State().IsCreating(), "a failed side effect never advances the lifecycle")
	require.False(t, rs.Dirty())
}

func TestReconcileResolvesDirtyNexusDestroy(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Nexuses.StartCreate(ctx, "n1", &types.CreateNexus{ID: "n1", Node: "node-1"}, types.NexusSpecFromCreate)
	require.NoError(t, err)
	_, err = reg.Nexuses.CompleteCreate(ctx, "n1", nil)
	require.NoError(t, err)

	_, err = reg.Nexuses.StartDestroy(ctx, "n1", false)
	require.NoError(t, err)

	h := reg.Nexuses.Resources().Get("n1")
	spec := h.Lock()
	spec.SetOpResult(true)
	h.Set(spec)
	h.Unlock()

	rec := NewReconciler(reg)
	fixed := rec.reconcile()
	require.Equal(t, 1, fixed)
	require.Nil(t, reg.Nexuses.Resources().Get("n1"))
}

func TestReconcileResolvesDirtyPoolCreate(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Pools.StartCreate(ctx, "p1", &types.CreatePool{ID: "p1", Node: "node-1"}, types.PoolSpecFromCreate)
	require.NoError(t, err)

	h := reg.Pools.Resources().Get("p1")
	spec := h.Lock()
	spec.SetOpResult(true)
	h.Set(spec)
	h.Unlock()

	rec := NewReconciler(reg)
	fixed := rec.reconcile()
	require.Equal(t, 1, fixed)

	p, ok := reg.Pool("p1")
	require.True(t, ok)
	require.True(t, p.State().IsCreated())
}

func TestReconcileNoDirtySpecsResolvesNothing(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Replicas.StartCreate(ctx, "r1", &types.CreateReplica{ID: "r1", Pool: "p1"}, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	_, err = reg.Replicas.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)

	rec := NewReconciler(reg)
	fixed := rec.reconcile()
	require.Equal(t, 0, fixed)
}

func TestStartStopDoesNotPanic(t *testing.T) {
	reg := newTestRegistry(t)
	rec := NewReconciler(reg)
	rec.Start()
	time.Sleep(5 * time.Millisecond)
	rec.Stop()
}
