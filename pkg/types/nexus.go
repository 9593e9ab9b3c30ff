package types

// ChildUri identifies a nexus child: either a replica's share URI or a
// pass-through bdev URI for a child the engine does not own.
type ChildUri string

// NexusOpKind enumerates the operations a NexusSpec's write-ahead log can
// record.
type NexusOpKind string

const (
	NexusOpCreate     NexusOpKind = "Create"
	NexusOpDestroy    NexusOpKind = "Destroy"
	NexusOpShare      NexusOpKind = "Share"
	NexusOpUnshare    NexusOpKind = "Unshare"
	NexusOpAddChild   NexusOpKind = "AddChild"
	NexusOpRemoveChild NexusOpKind = "RemoveChild"
)

type NexusOperation struct {
	Kind  NexusOpKind `json:"kind"`
	Share Protocol    `json:"share,omitempty"`
	Child ChildUri    `json:"child,omitempty"`
}

// CreateNexus is the request shape for creating a nexus.
type CreateNexus struct {
	Node     NodeID     `json:"node"`
	ID       NexusID    `json:"uuid"`
	Size     uint64     `json:"size"`
	Children []ChildUri `json:"children"`
	Managed  bool       `json:"managed"`
	Owner    *VolumeID  `json:"owner,omitempty"`
}

// NexusSpec is the desired state of a nexus: the node it runs on, its
// children (each a replica share URI), and the share protocol it exposes
// its own front-end device over.
type NexusSpec struct {
	ID       NexusID    `json:"uuid"`
	Node     NodeID     `json:"node"`
	Children []ChildUri `json:"children"`
	Size     uint64     `json:"size"`
	Share    Protocol   `json:"share"`
	Managed  bool       `json:"managed"`
	Owner    *VolumeID  `json:"owner,omitempty"`

	Status    SpecStatus                      `json:"state"`
	Updating  bool                            `json:"-"`
	Operation *OperationRecord[NexusOperation] `json:"operation,omitempty"`
}

func NexusSpecFromCreate(req *CreateNexus) *NexusSpec {
	var owner *VolumeID
	if req.Owner != nil {
		v := *req.Owner
		owner = &v
	}
	return &NexusSpec{
		ID:       req.ID,
		Node:     req.Node,
		Children: append([]ChildUri(nil), req.Children...),
		Size:     req.Size,
		Managed:  req.Managed,
		Owner:    owner,
		Status:   Creating(),
	}
}

func (n *NexusSpec) Matches(req *CreateNexus) bool {
	if n.ID != req.ID || n.Node != req.Node || n.Size != req.Size || len(n.Children) != len(req.Children) {
		return false
	}
	for i := range n.Children {
		if n.Children[i] != req.Children[i] {
			return false
		}
	}
	return true
}

func (n *NexusSpec) Clone() *NexusSpec {
	c := *n
	c.Children = append([]ChildUri(nil), n.Children...)
	if n.Owner != nil {
		v := *n.Owner
		c.Owner = &v
	}
	if n.Operation != nil {
		op := *n.Operation
		c.Operation = &op
	}
	return &c
}

func (n *NexusSpec) Key() string  { return "NexusSpec/" + string(n.ID) }
func (n *NexusSpec) Kind() string { return "Nexus" }
func (n *NexusSpec) UUID() string { return string(n.ID) }

func (n *NexusSpec) State() Lifecycle     { return n.Status.Lifecycle }
func (n *NexusSpec) SetState(l Lifecycle) { n.Status.Lifecycle = l }
func (n *NexusSpec) Dirty() bool          { return n.Operation.Dirty() }
func (n *NexusSpec) IsUpdating() bool     { return n.Updating }
func (n *NexusSpec) SetUpdating(u bool)   { n.Updating = u }

// Owned reports whether a volume is publishing through this nexus
// (invariant: a nexus owned by a volume cannot be destroyed directly, only
// via volume unpublish).
func (n *NexusSpec) Owned() bool { return n.Owner != nil }

// StatusSynced compares the spec's share protocol against the last observed
// nexus share, for the same reason as ReplicaSpec: a share/unshare issued
// before the node's previous one has been observed would otherwise race it.
func (n *NexusSpec) StatusSynced(observed ObservedStatus) bool { return observed.Share == n.Share }

func (n *NexusSpec) StartCreateOp() {
	n.Updating = true
	n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpCreate}}
}

func (n *NexusSpec) StartDestroyOp() {
	n.Updating = true
	n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpDestroy}}
}

// NexusUpdateOp is the UpdateOp type for NexusSpec: share, unshare, or
// add/remove a child.
type NexusUpdateOp struct {
	Share       Protocol
	Unshare     bool
	AddChild    ChildUri
	RemoveChild ChildUri
}

func (n *NexusSpec) hasChild(uri ChildUri) bool {
	for _, c := range n.Children {
		if c == uri {
			return true
		}
	}
	return false
}

func (n *NexusSpec) StartUpdateOp(_ ObservedStatus, op NexusUpdateOp) error {
	switch {
	case op.Unshare:
		if n.Share == ProtocolOff {
			return errNotShared
		}
		n.Updating = true
		n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpUnshare}}
	case op.Share != "":
		if n.Share == op.Share {
			return errAlreadyShared
		}
		n.Updating = true
		n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpShare, Share: op.Share}}
	case op.AddChild != "":
		// invariant 6: no duplicate child URIs.
		if n.hasChild(op.AddChild) {
			return errChildExists
		}
		n.Updating = true
		n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpAddChild, Child: op.AddChild}}
	case op.RemoveChild != "":
		if !n.hasChild(op.RemoveChild) {
			return errChildNotFound
		}
		n.Updating = true
		n.Operation = &OperationRecord[NexusOperation]{Op: NexusOperation{Kind: NexusOpRemoveChild, Child: op.RemoveChild}}
	}
	return nil
}

func (n *NexusSpec) CommitOp() {
	if n.Operation != nil {
		switch n.Operation.Op.Kind {
		case NexusOpCreate:
			n.Status = Created(StatusOnline)
		case NexusOpDestroy:
			n.Status = Deleted()
		case NexusOpShare:
			n.Share = n.Operation.Op.Share
		case NexusOpUnshare:
			n.Share = ProtocolOff
		case NexusOpAddChild:
			n.Children = append(n.Children, n.Operation.Op.Child)
		case NexusOpRemoveChild:
			kept := n.Children[:0]
			for _, c := range n.Children {
				if c != n.Operation.Op.Child {
					kept = append(kept, c)
				}
			}
			n.Children = kept
		}
	}
	n.ClearOp()
}

func (n *NexusSpec) ClearOp() {
	n.Operation = nil
	n.Updating = false
}

func (n *NexusSpec) SetOpResult(result bool) {
	if n.Operation != nil {
		n.Operation.Result = boolPtr(result)
	}
	n.Updating = false
}
