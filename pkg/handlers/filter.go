package handlers

import "github.com/cuemby/agent-core/pkg/types"

// matchPool reports whether p satisfies f, per the Node/Pool fields f.Kind
// says are meaningful.
func matchPool(f types.Filter, p *types.PoolSpec) bool {
	switch f.Kind {
	case types.FilterNone:
		return true
	case types.FilterNode:
		return p.Node == f.Node
	case types.FilterPool:
		return p.ID == f.Pool
	case types.FilterNodePool:
		return p.Node == f.Node && p.ID == f.Pool
	default:
		return false
	}
}

// matchReplica reports whether r satisfies f. Node filtering on a replica
// goes through the owning pool, resolved by the caller since Filter alone
// doesn't carry enough to look it up from here.
func matchReplica(f types.Filter, r *types.ReplicaSpec, poolNode func(types.PoolID) (types.NodeID, bool)) bool {
	switch f.Kind {
	case types.FilterNone:
		return true
	case types.FilterReplica:
		return r.ID == f.Replica
	case types.FilterPool:
		return r.Pool == f.Pool
	case types.FilterPoolReplica:
		return r.Pool == f.Pool && r.ID == f.Replica
	case types.FilterNode:
		n, ok := poolNode(r.Pool)
		return ok && n == f.Node
	case types.FilterNodePool:
		n, ok := poolNode(r.Pool)
		return ok && n == f.Node && r.Pool == f.Pool
	case types.FilterNodeReplica:
		n, ok := poolNode(r.Pool)
		return ok && n == f.Node && r.ID == f.Replica
	case types.FilterNodePoolReplica:
		n, ok := poolNode(r.Pool)
		return ok && n == f.Node && r.Pool == f.Pool && r.ID == f.Replica
	default:
		return false
	}
}

// matchNexus reports whether n satisfies f.
func matchNexus(f types.Filter, n *types.NexusSpec) bool {
	switch f.Kind {
	case types.FilterNone:
		return true
	case types.FilterNexus:
		return n.ID == f.Nexus
	case types.FilterNode:
		return n.Node == f.Node
	case types.FilterNodeNexus:
		return n.Node == f.Node && n.ID == f.Nexus
	default:
		return false
	}
}

// matchVolume reports whether v satisfies f. Node filtering goes through
// the volume's publishing target, if any; an unpublished volume never
// matches a node-scoped filter.
func matchVolume(f types.Filter, v *types.VolumeSpec) bool {
	switch f.Kind {
	case types.FilterNone:
		return true
	case types.FilterVolume:
		return v.ID == f.Volume
	case types.FilterNode:
		return v.Target != nil && v.Target.Node == f.Node
	case types.FilterNodeVolume:
		return v.Target != nil && v.Target.Node == f.Node && v.ID == f.Volume
	default:
		return false
	}
}
