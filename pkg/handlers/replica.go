package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// GetReplicas returns every replica matching f.
func (h *Handlers) GetReplicas(_ context.Context, f types.Filter) []*types.ReplicaSpec {
	all := h.reg.Replicas.Resources().ToSlice()
	out := make([]*types.ReplicaSpec, 0, len(all))
	poolNode := func(id types.PoolID) (types.NodeID, bool) {
		p, ok := h.reg.Pool(id)
		if !ok {
			return "", false
		}
		return p.Node, true
	}
	for _, r := range all {
		if matchReplica(f, r, poolNode) {
			out = append(out, r)
		}
	}
	return out
}

// replicaNode resolves the node a replica's data-plane calls must target,
// by way of the pool it lives on (ReplicaSpec itself carries no Node).
func (h *Handlers) replicaNode(spec *types.ReplicaSpec) (types.NodeID, error) {
	p, ok := h.reg.Pool(spec.Pool)
	if !ok {
		return "", svcerr.NotFound(svcerr.ResourcePool, string(spec.Pool))
	}
	return p.Node, nil
}

// CreateReplica realizes a new replica: start_create, the data-plane
// CreateReplica call, then complete_create with the outcome.
func (h *Handlers) CreateReplica(ctx context.Context, req *types.CreateReplica) (*types.ReplicaSpec, error) {
	id := string(req.ID)
	spec, err := h.reg.Replicas.StartCreate(ctx, id, req, types.ReplicaSpecFromCreate)
	if err != nil {
		return spec, err
	}

	cl, release, err := h.connectLocked(ctx, req.Node)
	if err != nil {
		return h.reg.Replicas.CompleteCreate(ctx, id, err)
	}
	_, callErr := cl.CreateReplica(ctx, req)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceReplica, id, callErr)
	}
	return h.reg.Replicas.CompleteCreate(ctx, id, callErr)
}

// DestroyReplica tears down a replica. delOwned must be true if the
// replica is currently referenced by a volume or nexus (invariant 5).
func (h *Handlers) DestroyReplica(ctx context.Context, id types.ReplicaID, delOwned bool) (*types.ReplicaSpec, error) {
	sid := string(id)
	spec, err := h.reg.Replicas.StartDestroy(ctx, sid, delOwned)
	if err != nil {
		return spec, err
	}
	if spec == nil || !spec.IsUpdating() {
		return spec, nil
	}

	node, err := h.replicaNode(spec)
	if err != nil {
		return h.reg.Replicas.CompleteDestroy(ctx, sid, err)
	}
	cl, release, err := h.connectLocked(ctx, node)
	if err != nil {
		return h.reg.Replicas.CompleteDestroy(ctx, sid, err)
	}
	callErr := cl.DestroyReplica(ctx, id)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceReplica, sid, callErr)
	}
	return h.reg.Replicas.CompleteDestroy(ctx, sid, callErr)
}

// ShareReplica exposes a replica over proto.
func (h *Handlers) ShareReplica(ctx context.Context, id types.ReplicaID, proto types.ReplicaShareProtocol) (*types.ReplicaSpec, error) {
	return h.updateReplica(ctx, id, types.ReplicaUpdateOp{Share: proto})
}

// UnshareReplica withdraws a replica's share.
func (h *Handlers) UnshareReplica(ctx context.Context, id types.ReplicaID) (*types.ReplicaSpec, error) {
	return h.updateReplica(ctx, id, types.ReplicaUpdateOp{Unshare: true})
}

func (h *Handlers) updateReplica(ctx context.Context, id types.ReplicaID, op types.ReplicaUpdateOp) (*types.ReplicaSpec, error) {
	sid := string(id)
	observed := h.replicaObservedStatus(id)

	spec, err := h.reg.Replicas.StartUpdate(ctx, sid, observed, op, false)
	if err != nil {
		return spec, err
	}
	node, err := h.replicaNode(spec)
	if err != nil {
		return h.reg.Replicas.CompleteUpdate(ctx, sid, err)
	}
	cl, release, err := h.connectLocked(ctx, node)
	if err != nil {
		return h.reg.Replicas.CompleteUpdate(ctx, sid, err)
	}

	var callErr error
	if op.Unshare {
		callErr = cl.UnshareReplica(ctx, id)
	} else {
		_, callErr = cl.ShareReplica(ctx, id, op.Share)
	}
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceReplica, sid, callErr)
	}
	return h.reg.Replicas.CompleteUpdate(ctx, sid, callErr)
}

func (h *Handlers) replicaObservedStatus(id types.ReplicaID) types.ObservedStatus {
	st, ok := h.reg.States().Replica(id)
	if !ok {
		return types.ObservedStatus{Runtime: types.StatusUnknown}
	}
	return types.ObservedStatus{Runtime: st.Status, Share: st.Share}
}
