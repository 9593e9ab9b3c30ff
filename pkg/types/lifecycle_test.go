package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOperationRecordDirty(t *testing.T) {
	var op *OperationRecord[ReplicaOperation]
	require.False(t, op.Dirty(), "nil record is never dirty")

	op = &OperationRecord[ReplicaOperation]{Op: ReplicaOperation{Kind: ReplicaOpCreate}}
	require.False(t, op.Dirty(), "no recorded result yet")

	op.Result = boolPtr(true)
	require.True(t, op.Dirty())
}

func TestReplicaSpecCreateLifecycle(t *testing.T) {
	req := &CreateReplica{ID: "r1", Pool: "p1", Size: 1024, Share: ReplicaShareProtocolNvmf}
	r := ReplicaSpecFromCreate(req)
	require.True(t, r.State().IsCreating())
	require.True(t, r.Matches(req))

	r.StartCreateOp()
	require.False(t, r.Dirty())
	r.SetOpResult(true)
	require.True(t, r.Dirty())

	r.CommitOp()
	require.True(t, r.State().IsCreated())
	require.Equal(t, StatusOnline, r.Status.Runtime)
	require.Nil(t, r.Operation)
}

func TestReplicaSpecShareUnshareRejectsNoop(t *testing.T) {
	r := ReplicaSpecFromCreate(&CreateReplica{ID: "r1", Pool: "p1"})
	r.Status = Created(StatusOnline)

	err := r.StartUpdateOp(ObservedStatus{}, ReplicaUpdateOp{Unshare: true})
	require.True(t, ErrNotShared(err))

	require.NoError(t, r.StartUpdateOp(ObservedStatus{}, ReplicaUpdateOp{Share: ReplicaShareProtocolNvmf}))
	r.CommitOp()
	require.Equal(t, ProtocolNvmf, r.Share)

	err = r.StartUpdateOp(ObservedStatus{}, ReplicaUpdateOp{Share: ReplicaShareProtocolNvmf})
	require.True(t, ErrAlreadyShared(err))

	require.NoError(t, r.StartUpdateOp(ObservedStatus{}, ReplicaUpdateOp{Unshare: true}))
	r.CommitOp()
	require.Equal(t, ProtocolOff, r.Share)
}

func TestReplicaOwned(t *testing.T) {
	r := ReplicaSpecFromCreate(&CreateReplica{ID: "r1", Pool: "p1"})
	require.False(t, r.Owned())

	vol := VolumeID("v1")
	r.Owners.Volume = &vol
	require.True(t, r.Owned())
}

func TestNexusAddRemoveChildRejectsDuplicatesAndMissing(t *testing.T) {
	n := NexusSpecFromCreate(&CreateNexus{ID: "n1", Node: "node-1"})
	n.Status = Created(StatusOnline)

	require.NoError(t, n.StartUpdateOp(ObservedStatus{}, NexusUpdateOp{AddChild: "uri-a"}))
	n.CommitOp()
	require.Equal(t, []ChildUri{"uri-a"}, n.Children)

	err := n.StartUpdateOp(ObservedStatus{}, NexusUpdateOp{AddChild: "uri-a"})
	require.True(t, ErrChildExists(err))

	err = n.StartUpdateOp(ObservedStatus{}, NexusUpdateOp{RemoveChild: "uri-missing"})
	require.True(t, ErrChildNotFound(err))

	require.NoError(t, n.StartUpdateOp(ObservedStatus{}, NexusUpdateOp{RemoveChild: "uri-a"}))
	n.CommitOp()
	require.Empty(t, n.Children)
}

func TestNexusOwnedByVolume(t *testing.T) {
	n := NexusSpecFromCreate(&CreateNexus{ID: "n1", Node: "node-1"})
	require.False(t, n.Owned())

	vol := VolumeID("v1")
	n.Owner = &vol
	require.True(t, n.Owned())
}

func TestNexusDestroyLifecycle(t *testing.T) {
	n := NexusSpecFromCreate(&CreateNexus{ID: "n1", Node: "node-1"})
	n.Status = Created(StatusOnline)

	n.StartDestroyOp()
	require.True(t, n.IsUpdating())
	n.SetOpResult(true)
	n.CommitOp()
	require.True(t, n.State().IsDeleted())
	require.False(t, n.IsUpdating())
}

func TestSpecStatusTransitions(t *testing.T) {
	require.True(t, Creating().IsCreating())
	require.True(t, Created(StatusOnline).IsCreated())
	require.True(t, Deleting().IsDeleting())
	require.True(t, Deleted().IsDeleted())
}

func TestNewFilterConstructors(t *testing.T) {
	f := NewFilterNodePoolReplica("node-1", "pool-1", "replica-1")
	require.Equal(t, FilterNodePoolReplica, f.Kind)
	require.Equal(t, NodeID("node-1"), f.Node)
	require.Equal(t, PoolID("pool-1"), f.Pool)
	require.Equal(t, ReplicaID("replica-1"), f.Replica)
}

func TestReplicaShareProtocolWidensToProtocol(t *testing.T) {
	require.Equal(t, ProtocolNvmf, ReplicaShareProtocolNvmf.AsProtocol())
}
