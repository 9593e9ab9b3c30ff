package types

// ReplicaOwners tracks the optional owning volume and the set of nexuses
// that reference a replica as a child. Owners are id references resolved
// through the resource map, never owned handles — this is what keeps the
// volume/nexus/replica graph acyclic (spec.md §9).
type ReplicaOwners struct {
	Volume  *VolumeID          `json:"volume,omitempty"`
	Nexuses map[NexusID]struct{} `json:"nexuses,omitempty"`
}

// IsOwned reports whether any volume or nexus currently references this
// replica.
func (o ReplicaOwners) IsOwned() bool {
	return o.Volume != nil || len(o.Nexuses) > 0
}

func (o ReplicaOwners) clone() ReplicaOwners {
	c := ReplicaOwners{}
	if o.Volume != nil {
		v := *o.Volume
		c.Volume = &v
	}
	if o.Nexuses != nil {
		c.Nexuses = make(map[NexusID]struct{}, len(o.Nexuses))
		for k := range o.Nexuses {
			c.Nexuses[k] = struct{}{}
		}
	}
	return c
}

// ReplicaOperation enumerates the operations a ReplicaSpec's write-ahead log
// can record.
type ReplicaOperation struct {
	Kind  ReplicaOpKind        `json:"kind"`
	Share ReplicaShareProtocol `json:"share,omitempty"`
}

type ReplicaOpKind string

const (
	ReplicaOpCreate  ReplicaOpKind = "Create"
	ReplicaOpDestroy ReplicaOpKind = "Destroy"
	ReplicaOpShare   ReplicaOpKind = "Share"
	ReplicaOpUnshare ReplicaOpKind = "Unshare"
)

// CreateReplica is the request shape for creating a replica.
type CreateReplica struct {
	Node    NodeID               `json:"node"`
	ID      ReplicaID            `json:"uuid"`
	Pool    PoolID               `json:"pool"`
	Size    uint64               `json:"size"`
	Thin    bool                 `json:"thin"`
	Share   ReplicaShareProtocol `json:"share"`
	Managed bool                 `json:"managed"`
	Owners  ReplicaOwners        `json:"owners"`
}

// ReplicaSpec is the desired state of a replica.
type ReplicaSpec struct {
	ID      ReplicaID     `json:"uuid"`
	Size    uint64        `json:"size"`
	Pool    PoolID        `json:"pool"`
	Thin    bool          `json:"thin"`
	Share   Protocol      `json:"share"`
	Owners  ReplicaOwners `json:"owners"`
	Managed bool          `json:"managed"`

	Status    SpecStatus                        `json:"state"`
	Updating  bool                              `json:"-"`
	Operation *OperationRecord[ReplicaOperation] `json:"operation,omitempty"`
}

func ReplicaSpecFromCreate(req *CreateReplica) *ReplicaSpec {
	return &ReplicaSpec{
		ID:      req.ID,
		Size:    req.Size,
		Pool:    req.Pool,
		Thin:    req.Thin,
		Share:   req.Share.AsProtocol(),
		Owners:  req.Owners.clone(),
		Managed: req.Managed,
		Status:  Creating(),
	}
}

func (r *ReplicaSpec) Matches(req *CreateReplica) bool {
	return r.ID == req.ID && r.Pool == req.Pool && r.Size == req.Size &&
		r.Thin == req.Thin && r.Share == req.Share.AsProtocol()
}

func (r *ReplicaSpec) Clone() *ReplicaSpec {
	c := *r
	c.Owners = r.Owners.clone()
	if r.Operation != nil {
		op := *r.Operation
		c.Operation = &op
	}
	return &c
}

func (r *ReplicaSpec) Key() string  { return "ReplicaSpec/" + string(r.ID) }
func (r *ReplicaSpec) Kind() string { return "Replica" }
func (r *ReplicaSpec) UUID() string { return string(r.ID) }

func (r *ReplicaSpec) State() Lifecycle     { return r.Status.Lifecycle }
func (r *ReplicaSpec) SetState(l Lifecycle) { r.Status.Lifecycle = l }
func (r *ReplicaSpec) Dirty() bool          { return r.Operation.Dirty() }
func (r *ReplicaSpec) IsUpdating() bool     { return r.Updating }
func (r *ReplicaSpec) SetUpdating(u bool)   { r.Updating = u }

// Owned reports whether this replica is referenced by a volume or nexus
// (invariant 5: destroy of an owned replica requires del_owned=true).
func (r *ReplicaSpec) Owned() bool { return r.Owners.IsOwned() }

// StatusSynced compares the spec's share protocol against the last observed
// replica share: a share/unshare issued while the node hasn't caught up
// with the previous one yet would otherwise race the data-plane call
// in flight.
func (r *ReplicaSpec) StatusSynced(observed ObservedStatus) bool { return observed.Share == r.Share }

func (r *ReplicaSpec) StartCreateOp() {
	r.Updating = true
	r.Operation = &OperationRecord[ReplicaOperation]{Op: ReplicaOperation{Kind: ReplicaOpCreate}}
}

func (r *ReplicaSpec) StartDestroyOp() {
	r.Updating = true
	r.Operation = &OperationRecord[ReplicaOperation]{Op: ReplicaOperation{Kind: ReplicaOpDestroy}}
}

// ReplicaUpdateOp is the UpdateOp type for ReplicaSpec: share or unshare.
type ReplicaUpdateOp struct {
	Share   ReplicaShareProtocol
	Unshare bool
}

func (r *ReplicaSpec) StartUpdateOp(_ ObservedStatus, op ReplicaUpdateOp) error {
	if op.Unshare {
		if r.Share == ProtocolOff || r.Share == "" {
			return errNotShared
		}
		r.Updating = true
		r.Operation = &OperationRecord[ReplicaOperation]{Op: ReplicaOperation{Kind: ReplicaOpUnshare}}
		return nil
	}
	if r.Share == op.Share.AsProtocol() {
		return errAlreadyShared
	}
	r.Updating = true
	r.Operation = &OperationRecord[ReplicaOperation]{Op: ReplicaOperation{Kind: ReplicaOpShare, Share: op.Share}}
	return nil
}

func (r *ReplicaSpec) CommitOp() {
	if r.Operation != nil {
		switch r.Operation.Op.Kind {
		case ReplicaOpCreate:
			r.Status = Created(StatusOnline)
		case ReplicaOpDestroy:
			r.Status = Deleted()
		case ReplicaOpShare:
			r.Share = r.Operation.Op.Share.AsProtocol()
		case ReplicaOpUnshare:
			r.Share = ProtocolOff
		}
	}
	r.ClearOp()
}

func (r *ReplicaSpec) ClearOp() {
	r.Operation = nil
	r.Updating = false
}

func (r *ReplicaSpec) SetOpResult(result bool) {
	if r.Operation != nil {
		r.Operation.Result = boolPtr(result)
	}
	r.Updating = false
}
