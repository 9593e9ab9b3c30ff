package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// GetVolumes returns every volume matching f.
func (h *Handlers) GetVolumes(_ context.Context, f types.Filter) []*types.VolumeSpec {
	all := h.reg.Volumes.Resources().ToSlice()
	out := make([]*types.VolumeSpec, 0, len(all))
	for _, v := range all {
		if matchVolume(f, v) {
			out = append(out, v)
		}
	}
	return out
}

// CreateVolume realizes a new volume: start_create, then place and create
// req.NumReplicas replicas across distinct nodes (pkg/registry's
// PlacePool), then complete_create with the outcome. Unlike Pool/Replica/
// Nexus, a volume has no gRPC verb of its own — its "side effect" is the
// replica placement this method drives.
func (h *Handlers) CreateVolume(ctx context.Context, req *types.CreateVolume) (*types.VolumeSpec, error) {
	id := string(req.ID)
	spec, err := h.reg.Volumes.StartCreate(ctx, id, req, types.VolumeSpecFromCreate)
	if err != nil {
		return spec, err
	}

	created, placeErr := h.placeReplicas(ctx, req)
	if placeErr != nil {
		for _, rid := range created {
			if _, derr := h.DestroyReplica(ctx, rid, true); derr != nil {
				h.logger.Error().Err(derr).Str("replica", string(rid)).
					Msg("failed to roll back replica after volume create failure")
			}
		}
		return h.reg.Volumes.CompleteCreate(ctx, id, placeErr)
	}
	return h.reg.Volumes.CompleteCreate(ctx, id, nil)
}

// placeReplicas picks req.NumReplicas distinct-node pools and creates a
// managed, volume-owned replica on each. On the first failure it returns
// the error along with whatever replicas it did manage to create, so the
// caller can roll them back.
func (h *Handlers) placeReplicas(ctx context.Context, req *types.CreateVolume) ([]types.ReplicaID, error) {
	used := make(map[types.NodeID]struct{})
	var created []types.ReplicaID

	for i := uint8(0); i < req.NumReplicas; i++ {
		pool, err := h.reg.PlacePool(used, req.Size)
		if err != nil {
			return created, err
		}
		used[pool.Node] = struct{}{}

		rid := types.NewReplicaID()
		_, err = h.CreateReplica(ctx, &types.CreateReplica{
			Node:    pool.Node,
			ID:      rid,
			Pool:    pool.ID,
			Size:    req.Size,
			Share:   types.ReplicaShareProtocolNvmf,
			Managed: true,
			Owners:  types.ReplicaOwners{Volume: &req.ID},
		})
		if err != nil {
			return created, err
		}
		created = append(created, rid)
	}
	return created, nil
}

// DestroyVolume tears down a volume: unpublishing its nexus (if any) and
// destroying its owned replicas before completing the volume's own
// destroy transaction.
func (h *Handlers) DestroyVolume(ctx context.Context, id types.VolumeID) (*types.VolumeSpec, error) {
	sid := string(id)
	spec, err := h.reg.Volumes.StartDestroy(ctx, sid, false)
	if err != nil {
		return spec, err
	}
	if spec == nil || !spec.IsUpdating() {
		return spec, nil
	}

	var teardownErr error
	if spec.Target != nil {
		teardownErr = h.teardownNexus(ctx, spec.Target)
	}
	if teardownErr == nil {
		for _, r := range h.volumeReplicas(id) {
			if _, derr := h.DestroyReplica(ctx, r.ID, true); derr != nil {
				teardownErr = derr
				break
			}
		}
	}
	return h.reg.Volumes.CompleteDestroy(ctx, sid, teardownErr)
}

// PublishVolume exposes a volume through a new nexus built from its
// replicas' share URIs, on the preferred node if given, otherwise wherever
// one of its replicas already lives. The preferred node's reachability is
// not checked before the nexus is created there.
func (h *Handlers) PublishVolume(ctx context.Context, req *types.PublishVolume) (*types.VolumeSpec, error) {
	sid := string(req.ID)
	vol, ok := h.reg.Volume(req.ID)
	if !ok {
		return nil, svcerr.NotFound(svcerr.ResourceVolume, sid)
	}

	node, children, err := h.nexusPlan(vol, req.PreferedNode)
	if err != nil {
		return nil, err
	}
	nexusID := types.NewNexusID()
	target := &types.VolumeTarget{Node: node, Nexus: nexusID}

	observed := h.volumeObservedStatus(req.ID)
	spec, err := h.reg.Volumes.StartUpdate(ctx, sid, observed, types.VolumeUpdateOp{Publish: target}, false)
	if err != nil {
		return spec, err
	}

	_, createErr := h.CreateNexus(ctx, &types.CreateNexus{
		Node:     node,
		ID:       nexusID,
		Size:     vol.Size,
		Children: children,
		Managed:  true,
		Owner:    &req.ID,
	})
	return h.reg.Volumes.CompleteUpdate(ctx, sid, createErr)
}

// UnpublishVolume tears down a volume's publishing nexus.
func (h *Handlers) UnpublishVolume(ctx context.Context, req *types.UnpublishVolume) (*types.VolumeSpec, error) {
	sid := string(req.ID)
	vol, ok := h.reg.Volume(req.ID)
	if !ok {
		return nil, svcerr.NotFound(svcerr.ResourceVolume, sid)
	}
	if vol.Target == nil {
		return nil, svcerr.NotPublished(sid)
	}
	target := *vol.Target

	observed := h.volumeObservedStatus(req.ID)
	spec, err := h.reg.Volumes.StartUpdate(ctx, sid, observed, types.VolumeUpdateOp{Unpublish: true}, false)
	if err != nil {
		return spec, err
	}

	destroyErr := h.teardownNexus(ctx, &target)
	return h.reg.Volumes.CompleteUpdate(ctx, sid, destroyErr)
}

func (h *Handlers) teardownNexus(ctx context.Context, target *types.VolumeTarget) error {
	_, err := h.DestroyNexus(ctx, target.Nexus, true)
	return err
}

func (h *Handlers) volumeReplicas(id types.VolumeID) []*types.ReplicaSpec {
	all := h.reg.Replicas.Resources().ToSlice()
	out := make([]*types.ReplicaSpec, 0)
	for _, r := range all {
		if r.Owners.Volume != nil && *r.Owners.Volume == id {
			out = append(out, r)
		}
	}
	return out
}

// nexusPlan picks the node to host a volume's publishing nexus and the
// child URIs to build it from, by reading each replica's last observed
// share URI from the States Cache.
func (h *Handlers) nexusPlan(vol *types.VolumeSpec, preferred types.NodeID) (types.NodeID, []types.ChildUri, error) {
	replicas := h.volumeReplicas(vol.ID)
	if len(replicas) == 0 {
		return "", nil, svcerr.NotEnoughResources("volume has no replicas to publish")
	}

	node := preferred
	children := make([]types.ChildUri, 0, len(replicas))
	for _, r := range replicas {
		st, ok := h.reg.States().Replica(r.ID)
		if !ok || st.URI == "" {
			continue
		}
		children = append(children, types.ChildUri(st.URI))
		if node == "" {
			if p, ok := h.reg.Pool(r.Pool); ok {
				node = p.Node
			}
		}
	}
	if node == "" {
		return "", nil, svcerr.NotEnoughResources("no node available to host publishing nexus")
	}
	if len(children) == 0 {
		return "", nil, svcerr.NotEnoughResources("no shared replica URIs available to build nexus")
	}
	return node, children, nil
}

// volumeObservedStatus always reports Unknown: VolumeSpec.StatusSynced
// unconditionally returns true (volumes have no States Cache entry of
// their own), so the value passed through StartUpdate's status-sync guard
// is never actually consulted.
func (h *Handlers) volumeObservedStatus(_ types.VolumeID) types.ObservedStatus {
	return types.ObservedStatus{Runtime: types.StatusUnknown}
}
