package specs

import (
	"context"
	"errors"
	"testing"

	"github.com/cuemby/agent-core/pkg/resourcemap"
	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	failPut    bool
	failDelete bool
}

func (s *fakeStore) PutObj(ctx context.Context, key string, value any) error {
	if s.failPut {
		return errors.New("put failed")
	}
	return nil
}

func (s *fakeStore) DeleteObj(ctx context.Context, key string) error {
	if s.failDelete {
		return errors.New("delete failed")
	}
	return nil
}

func newReplicaEngine(store Store) *Engine[*types.ReplicaSpec, types.CreateReplica, types.ReplicaUpdateOp] {
	resources := resourcemap.New[string, *types.ReplicaSpec]()
	return New[*types.ReplicaSpec, types.CreateReplica, types.ReplicaUpdateOp](svcerr.ResourceReplica, resources, store)
}

func TestStartCreateThenCompleteCreateTransitionsToCreated(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1", Size: 100}

	spec, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	require.True(t, spec.State().IsCreating())

	spec, err = e.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)
	require.True(t, spec.State().IsCreated())
}

func TestStartCreateRetryWithSameParamsIsIdempotent(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1", Size: 100}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)

	_, err = e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
}

func TestStartCreateRetryWithDifferentParamsConflicts(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()

	_, err := e.StartCreate(ctx, "r1", &types.CreateReplica{ID: "r1", Pool: "p1", Size: 100}, types.ReplicaSpecFromCreate)
	require.NoError(t, err)

	_, err = e.StartCreate(ctx, "r1", &types.CreateReplica{ID: "r1", Pool: "p1", Size: 200}, types.ReplicaSpecFromCreate)
	require.True(t, svcerr.Is(err, svcerr.KindConflict))
}

func TestStartCreateAgainstCreatedSpecFails(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	_, err = e.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)

	_, err = e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.True(t, svcerr.Is(err, svcerr.KindAlreadyExists))
}

func TestCompleteCreateFailedSideEffectLeavesSpecCreating(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)

	spec, err := e.CompleteCreate(ctx, "r1", errors.New("dial failed"))
	require.Error(t, err)
	require.True(t, spec.State().IsCreating(), "a failed create side effect never transitions the lifecycle")
	require.Nil(t, spec.Operation, "ClearOp wipes the in-flight operation even on failure")
}

func TestStartDestroyAbsentSpecIsNoOp(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	spec, err := e.StartDestroy(context.Background(), "missing", false)
	require.NoError(t, err)
	require.Nil(t, spec)
}

func TestStartDestroyOwnedWithoutDelOwnedFails(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	_, err = e.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)

	h := e.Resources().Get("r1")
	spec := h.Lock()
	vol := types.VolumeID("v1")
	spec.Owners.Volume = &vol
	h.Set(spec)
	h.Unlock()

	_, err = e.StartDestroy(ctx, "r1", false)
	require.True(t, svcerr.Is(err, svcerr.KindInUse))

	_, err = e.StartDestroy(ctx, "r1", true)
	require.NoError(t, err)
}

func TestCompleteDestroyRemovesFromResourceMap(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	_, err = e.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)

	_, err = e.StartDestroy(ctx, "r1", false)
	require.NoError(t, err)
	_, err = e.CompleteDestroy(ctx, "r1", nil)
	require.NoError(t, err)

	require.Nil(t, e.Resources().Get("r1"))
}

func TestStartUpdateRejectsWhileStillCreating(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	// Fail the create so the spec stays Creating with no operation in flight.
	_, err = e.CompleteCreate(ctx, "r1", errors.New("dial failed"))
	require.Error(t, err)

	_, err = e.StartUpdate(ctx, "r1", types.ObservedStatus{Runtime: types.StatusOnline}, types.ReplicaUpdateOp{Share: types.ReplicaShareProtocolNvmf}, false)
	require.True(t, svcerr.Is(err, svcerr.KindFailedPrecondition))
}

func TestStartUpdateConcurrentWithInFlightOpConflicts(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	_, err = e.CompleteCreate(ctx, "r1", nil)
	require.NoError(t, err)

	_, err = e.StartUpdate(ctx, "r1", types.ObservedStatus{Runtime: types.StatusOnline}, types.ReplicaUpdateOp{Share: types.ReplicaShareProtocolNvmf}, false)
	require.NoError(t, err)

	_, err = e.StartUpdate(ctx, "r1", types.ObservedStatus{Runtime: types.StatusOnline}, types.ReplicaUpdateOp{Unshare: true}, false)
	require.True(t, svcerr.Is(err, svcerr.KindConflict))
}

func TestStartCreateStoreFailureRollsBackInsert(t *testing.T) {
	e := newReplicaEngine(&fakeStore{failPut: true})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.True(t, svcerr.Is(err, svcerr.KindStoreSave))
	require.Nil(t, e.Resources().Get("r1"), "a failed initial persist must not leave a half-created entry behind")
}

func TestValidateUpdateStepMatchesStartUpdateGuards(t *testing.T) {
	e := newReplicaEngine(&fakeStore{})
	ctx := context.Background()
	req := &types.CreateReplica{ID: "r1", Pool: "p1"}

	_, err := e.StartCreate(ctx, "r1", req, types.ReplicaSpecFromCreate)
	require.NoError(t, err)
	// Fail the create so the spec stays Creating with no operation in flight.
	_, err = e.CompleteCreate(ctx, "r1", errors.New("dial failed"))
	require.Error(t, err)

	err = e.ValidateUpdateStep("r1", types.ObservedStatus{Runtime: types.StatusOnline}, false)
	require.True(t, svcerr.Is(err, svcerr.KindFailedPrecondition))

	err = e.ValidateUpdateStep("missing", types.ObservedStatus{Runtime: types.StatusOnline}, false)
	require.True(t, svcerr.Is(err, svcerr.KindNotFound))
}
