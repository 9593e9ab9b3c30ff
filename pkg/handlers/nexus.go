package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// GetNexuses returns every nexus matching f.
func (h *Handlers) GetNexuses(_ context.Context, f types.Filter) []*types.NexusSpec {
	all := h.reg.Nexuses.Resources().ToSlice()
	out := make([]*types.NexusSpec, 0, len(all))
	for _, n := range all {
		if matchNexus(f, n) {
			out = append(out, n)
		}
	}
	return out
}

// CreateNexus realizes a new nexus: start_create, the data-plane
// CreateNexus call, then complete_create with the outcome.
func (h *Handlers) CreateNexus(ctx context.Context, req *types.CreateNexus) (*types.NexusSpec, error) {
	id := string(req.ID)
	spec, err := h.reg.Nexuses.StartCreate(ctx, id, req, types.NexusSpecFromCreate)
	if err != nil {
		return spec, err
	}

	cl, release, err := h.connectLocked(ctx, req.Node)
	if err != nil {
		return h.reg.Nexuses.CompleteCreate(ctx, id, err)
	}
	_, callErr := cl.CreateNexus(ctx, req)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceNexus, id, callErr)
	}
	return h.reg.Nexuses.CompleteCreate(ctx, id, callErr)
}

// DestroyNexus tears down a nexus. delOwned must be true if a volume is
// currently publishing through it.
func (h *Handlers) DestroyNexus(ctx context.Context, id types.NexusID, delOwned bool) (*types.NexusSpec, error) {
	sid := string(id)
	spec, err := h.reg.Nexuses.StartDestroy(ctx, sid, delOwned)
	if err != nil {
		return spec, err
	}
	if spec == nil || !spec.IsUpdating() {
		return spec, nil
	}

	cl, release, err := h.connectLocked(ctx, spec.Node)
	if err != nil {
		return h.reg.Nexuses.CompleteDestroy(ctx, sid, err)
	}
	callErr := cl.DestroyNexus(ctx, id)
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceNexus, sid, callErr)
	}
	return h.reg.Nexuses.CompleteDestroy(ctx, sid, callErr)
}

// ShareNexus exposes a nexus's front-end device over proto. The
// data-plane verb is PublishNexus: a nexus's "share" and a volume's
// "publish" are the same gRPC operation viewed from two callers.
func (h *Handlers) ShareNexus(ctx context.Context, id types.NexusID, proto types.Protocol) (*types.NexusSpec, error) {
	return h.updateNexus(ctx, id, types.NexusUpdateOp{Share: proto})
}

// UnshareNexus withdraws a nexus's share, via the data-plane UnpublishNexus
// verb.
func (h *Handlers) UnshareNexus(ctx context.Context, id types.NexusID) (*types.NexusSpec, error) {
	return h.updateNexus(ctx, id, types.NexusUpdateOp{Unshare: true})
}

// AddNexusChild attaches child (a replica share URI or bdev URI) to a
// nexus.
func (h *Handlers) AddNexusChild(ctx context.Context, id types.NexusID, child types.ChildUri) (*types.NexusSpec, error) {
	return h.updateNexus(ctx, id, types.NexusUpdateOp{AddChild: child})
}

// RemoveNexusChild detaches child from a nexus.
func (h *Handlers) RemoveNexusChild(ctx context.Context, id types.NexusID, child types.ChildUri) (*types.NexusSpec, error) {
	return h.updateNexus(ctx, id, types.NexusUpdateOp{RemoveChild: child})
}

func (h *Handlers) updateNexus(ctx context.Context, id types.NexusID, op types.NexusUpdateOp) (*types.NexusSpec, error) {
	sid := string(id)
	observed := h.nexusObservedStatus(id)

	spec, err := h.reg.Nexuses.StartUpdate(ctx, sid, observed, op, false)
	if err != nil {
		return spec, err
	}
	cl, release, err := h.connectLocked(ctx, spec.Node)
	if err != nil {
		return h.reg.Nexuses.CompleteUpdate(ctx, sid, err)
	}

	var callErr error
	switch {
	case op.Unshare:
		callErr = cl.UnpublishNexus(ctx, id)
	case op.Share != "":
		_, callErr = cl.PublishNexus(ctx, id, op.Share)
	case op.AddChild != "":
		callErr = cl.AddChildNexus(ctx, id, op.AddChild)
	case op.RemoveChild != "":
		callErr = cl.RemoveChildNexus(ctx, id, op.RemoveChild)
	}
	release()
	if callErr != nil {
		callErr = svcerr.GrpcRequest(svcerr.ResourceNexus, sid, callErr)
	}
	return h.reg.Nexuses.CompleteUpdate(ctx, sid, callErr)
}

func (h *Handlers) nexusObservedStatus(id types.NexusID) types.ObservedStatus {
	st, ok := h.reg.States().Nexus(id)
	if !ok {
		return types.ObservedStatus{Runtime: types.StatusUnknown}
	}
	return types.ObservedStatus{Runtime: st.Status, Share: st.Share}
}
