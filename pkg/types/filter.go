package types

// FilterKind tags which variant of Filter is populated, since Go has no
// native closed sum type: each message-bus list verb accepts a Filter and
// the handler switches on Kind to decide which fields are meaningful.
type FilterKind string

const (
	FilterNone             FilterKind = "None"
	FilterNode             FilterKind = "Node"
	FilterPool             FilterKind = "Pool"
	FilterNodePool         FilterKind = "NodePool"
	FilterVolume           FilterKind = "Volume"
	FilterNodeVolume       FilterKind = "NodeVolume"
	FilterReplica          FilterKind = "Replica"
	FilterNodeReplica      FilterKind = "NodeReplica"
	FilterPoolReplica      FilterKind = "PoolReplica"
	FilterNodePoolReplica  FilterKind = "NodePoolReplica"
	FilterNexus            FilterKind = "Nexus"
	FilterNodeNexus        FilterKind = "NodeNexus"
)

// Filter narrows a GetPools/GetReplicas/GetNexuses/GetVolumes request to a
// subset of the resource map (GetNodes takes no filter). Only the fields
// relevant to Kind are read. A Kind a list verb does not support matches
// nothing, so the verb returns an empty list; no InvalidFilter error is
// raised.
type Filter struct {
	Kind    FilterKind
	Node    NodeID
	Pool    PoolID
	Volume  VolumeID
	Replica ReplicaID
	Nexus   NexusID
}

func NewFilterNone() Filter { return Filter{Kind: FilterNone} }

func NewFilterNode(n NodeID) Filter { return Filter{Kind: FilterNode, Node: n} }

func NewFilterPool(p PoolID) Filter { return Filter{Kind: FilterPool, Pool: p} }

func NewFilterNodePool(n NodeID, p PoolID) Filter {
	return Filter{Kind: FilterNodePool, Node: n, Pool: p}
}

func NewFilterVolume(v VolumeID) Filter { return Filter{Kind: FilterVolume, Volume: v} }

func NewFilterNodeVolume(n NodeID, v VolumeID) Filter {
	return Filter{Kind: FilterNodeVolume, Node: n, Volume: v}
}

func NewFilterReplica(r ReplicaID) Filter { return Filter{Kind: FilterReplica, Replica: r} }

func NewFilterNodeReplica(n NodeID, r ReplicaID) Filter {
	return Filter{Kind: FilterNodeReplica, Node: n, Replica: r}
}

func NewFilterPoolReplica(p PoolID, r ReplicaID) Filter {
	return Filter{Kind: FilterPoolReplica, Pool: p, Replica: r}
}

func NewFilterNodePoolReplica(n NodeID, p PoolID, r ReplicaID) Filter {
	return Filter{Kind: FilterNodePoolReplica, Node: n, Pool: p, Replica: r}
}

func NewFilterNexus(x NexusID) Filter { return Filter{Kind: FilterNexus, Nexus: x} }

func NewFilterNodeNexus(n NodeID, x NexusID) Filter {
	return Filter{Kind: FilterNodeNexus, Node: n, Nexus: x}
}
