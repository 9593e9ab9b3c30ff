package handlers

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

func newTestHandlers(t *testing.T) (*Handlers, *registry.Registry) {
	t.Helper()
	store, err := kvstore.Open(filepath.Join(t.TempDir(), "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	reg := registry.New(store, registry.Timing{
		ReconcilePeriod:     10 * time.Millisecond,
		ReconcileIdlePeriod: 50 * time.Millisecond,
	}, rpc.Timeouts{Connect: time.Second, Request: time.Second})
	require.NoError(t, reg.Init(context.Background()))
	return New(reg), reg
}

// seedPool drives a pool straight to Created without a gRPC call, by
// completing its create transaction with a nil side-effect error — the
// same shape the reconciler uses to resolve a dirty spec, just invoked
// immediately instead of after a crash.
func seedPool(t *testing.T, reg *registry.Registry, id types.PoolID, node types.NodeID) *types.PoolSpec {
	t.Helper()
	ctx := context.Background()
	req := &types.CreatePool{ID: id, Node: node, Disks: []string{"/dev/fake0"}}
	_, err := reg.Pools.StartCreate(ctx, string(id), req, types.PoolSpecFromCreate)
	require.NoError(t, err)
	spec, err := reg.Pools.CompleteCreate(ctx, string(id), nil)
	require.NoError(t, err)
	return spec
}

func TestGetPools_FiltersByNode(t *testing.T) {
	h, reg := newTestHandlers(t)
	seedPool(t, reg, "pool-a", "node-1")
	seedPool(t, reg, "pool-b", "node-2")

	got := h.GetPools(context.Background(), types.NewFilterNode("node-1"))
	require.Len(t, got, 1)
	require.Equal(t, types.PoolID("pool-a"), got[0].ID)
}

func TestGetPools_FilterNoneReturnsAll(t *testing.T) {
	h, reg := newTestHandlers(t)
	seedPool(t, reg, "pool-a", "node-1")
	seedPool(t, reg, "pool-b", "node-2")

	got := h.GetPools(context.Background(), types.NewFilterNone())
	require.Len(t, got, 2)
}

func TestCreatePool_DuplicateIDFailsBeforeAnyDial(t *testing.T) {
	h, _ := newTestHandlers(t)
	req := &types.CreatePool{ID: "pool-a", Node: "node-1", Disks: []string{"/dev/fake0"}}

	_, err := h.reg.Pools.StartCreate(context.Background(), "pool-a", req, types.PoolSpecFromCreate)
	require.NoError(t, err)
	_, err = h.reg.Pools.CompleteCreate(context.Background(), "pool-a", nil)
	require.NoError(t, err)

	_, err = h.CreatePool(context.Background(), req)
	require.Error(t, err)
}

func TestDestroyReplica_AbsentIsNoOp(t *testing.T) {
	h, _ := newTestHandlers(t)
	spec, err := h.DestroyReplica(context.Background(), "does-not-exist", false)
	require.NoError(t, err)
	require.Nil(t, spec)
}

func seedReplica(t *testing.T, reg *registry.Registry, id types.ReplicaID, pool types.PoolID, owners types.ReplicaOwners) *types.ReplicaSpec {
	t.Helper()
	ctx := context.Background()
	req := &types.CreateReplica{ID: id, Pool: pool, Size: 1024, Owners: owners}
	_, err := reg.Replicas.StartCreate(ctx, string(id), req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	spec, err := reg.Replicas.CompleteCreate(ctx, string(id), nil)
	require.NoError(t, err)
	return spec
}

func TestDestroyReplica_OwnedWithoutDelOwnedFails(t *testing.T) {
	h, reg := newTestHandlers(t)
	seedPool(t, reg, "pool-a", "node-1")
	vol := types.VolumeID("vol-1")
	seedReplica(t, reg, "replica-1", "pool-a", types.ReplicaOwners{Volume: &vol})

	_, err := h.DestroyReplica(context.Background(), "replica-1", false)
	require.Error(t, err)
}

func TestGetReplicas_FilterByPool(t *testing.T) {
	h, reg := newTestHandlers(t)
	seedPool(t, reg, "pool-a", "node-1")
	seedPool(t, reg, "pool-b", "node-2")
	seedReplica(t, reg, "replica-1", "pool-a", types.ReplicaOwners{})
	seedReplica(t, reg, "replica-2", "pool-b", types.ReplicaOwners{})

	got := h.GetReplicas(context.Background(), types.NewFilterPool("pool-a"))
	require.Len(t, got, 1)
	require.Equal(t, types.ReplicaID("replica-1"), got[0].ID)
}

func TestGetReplicas_FilterByNodeResolvesThroughPool(t *testing.T) {
	h, reg := newTestHandlers(t)
	seedPool(t, reg, "pool-a", "node-1")
	seedPool(t, reg, "pool-b", "node-2")
	seedReplica(t, reg, "replica-1", "pool-a", types.ReplicaOwners{})
	seedReplica(t, reg, "replica-2", "pool-b", types.ReplicaOwners{})

	got := h.GetReplicas(context.Background(), types.NewFilterNode("node-2"))
	require.Len(t, got, 1)
	require.Equal(t, types.ReplicaID("replica-2"), got[0].ID)
}

func TestCreateVolume_NoEligiblePoolRollsBackCleanly(t *testing.T) {
	h, _ := newTestHandlers(t)
	req := &types.CreateVolume{ID: "vol-1", Size: 1024, NumReplicas: 2, Protocol: types.ProtocolNvmf}

	spec, err := h.CreateVolume(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, types.LifecycleCreating, spec.State())
}

func TestUnpublishVolume_NotPublished(t *testing.T) {
	h, reg := newTestHandlers(t)
	ctx := context.Background()
	req := &types.CreateVolume{ID: "vol-1", Size: 1024, NumReplicas: 1, Protocol: types.ProtocolNvmf}
	_, err := reg.Volumes.StartCreate(ctx, "vol-1", req, types.VolumeSpecFromCreate)
	require.NoError(t, err)
	_, err = reg.Volumes.CompleteCreate(ctx, "vol-1", nil)
	require.NoError(t, err)

	_, err = h.UnpublishVolume(ctx, &types.UnpublishVolume{ID: "vol-1"})
	require.Error(t, err)
}

func TestRegisterNodeThenDeregister(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()

	n := &types.NodeSpec{ID: "node-1", Endpoint: "127.0.0.1:10000", Admin: types.NodeAdminStateOnline}
	require.NoError(t, h.RegisterNode(ctx, n))

	nodes := h.GetNodes(ctx)
	require.Len(t, nodes, 1)
	require.Equal(t, types.NodeID("node-1"), nodes[0].ID)

	require.NoError(t, h.DeregisterNode(ctx, "node-1"))
	require.Empty(t, h.GetNodes(ctx))
}

func TestWatchLifecycle(t *testing.T) {
	h, _ := newTestHandlers(t)
	ctx := context.Background()

	w, err := h.CreateWatch(ctx, &types.CreateWatch{
		ResourceKind: types.WatchResourceVolume,
		ResourceID:   "vol-1",
		Callback:     "nats://watchers.vol-1",
	})
	require.NoError(t, err)
	require.NotEmpty(t, w.ID)

	all, err := h.GetWatchers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)

	scoped, err := h.GetWatchers(ctx, "vol-1")
	require.NoError(t, err)
	require.Len(t, scoped, 1)

	none, err := h.GetWatchers(ctx, "vol-2")
	require.NoError(t, err)
	require.Empty(t, none)

	require.NoError(t, h.DeleteWatch(ctx, w.ID))
	remaining, err := h.GetWatchers(ctx, "")
	require.NoError(t, err)
	require.Empty(t, remaining)
}
