package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// GetPools returns every pool matching f.
func (h *Handlers) GetPools(_ context.Context, f types.Filter) []*types.PoolSpec {
	all := h.reg.Pools.Resources().ToSlice()
	out := make([]*types.PoolSpec, 0, len(all))
	for _, p := range all {
		if matchPool(f, p) {
			out = append(out, p)
		}
	}
	return out
}

// CreatePool realizes a new pool on req.Node: start_create, the
// data-plane CreatePool call, then complete_create with the outcome.
func (h *Handlers) CreatePool(ctx context.Context, req *types.CreatePool) (*types.PoolSpec, error) {
	id := string(req.ID)
	spec, err := h.reg.Pools.StartCreate(ctx, id, req, types.PoolSpecFromCreate)
	if err != nil {
		return spec, err
	}

	cl, release, err := h.connectLocked(ctx, req.Node)
	if err != nil {
		return h.reg.Pools.CompleteCreate(ctx, id, err)
	}
	callErr := cl.CreatePool(ctx, req)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourcePool, id, callErr)
	}
	return h.reg.Pools.CompleteCreate(ctx, id, callErr)
}

// DestroyPool tears down a pool. Pools are never Owned() (spec.md has no
// verb that references a pool by id from another kind), so delOwned is
// always irrelevant here.
func (h *Handlers) DestroyPool(ctx context.Context, id types.PoolID) (*types.PoolSpec, error) {
	sid := string(id)
	spec, err := h.reg.Pools.StartDestroy(ctx, sid, false)
	if err != nil {
		return spec, err
	}
	if spec == nil || !spec.IsUpdating() {
		// Absent or already Deleted: start_destroy's no-op-success path,
		// nothing to complete.
		return spec, nil
	}

	cl, release, err := h.connectLocked(ctx, spec.Node)
	if err != nil {
		return h.reg.Pools.CompleteDestroy(ctx, sid, err)
	}
	callErr := cl.DestroyPool(ctx, id)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourcePool, sid, callErr)
	}
	return h.reg.Pools.CompleteDestroy(ctx, sid, callErr)
}
