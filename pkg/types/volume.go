package types

// VolumePolicy holds the operator-tunable policy attributes of a volume.
type VolumePolicy struct {
	// SelfHeal is stored and persisted with the volume. No component in this
	// module reads it: a faulted replica is not replaced automatically.
	SelfHeal bool `json:"selfHeal"`
}

// VolumeTarget is the nexus currently publishing a volume, set once
// PublishVolume commits and cleared on UnpublishVolume.
type VolumeTarget struct {
	Node  NodeID  `json:"node"`
	Nexus NexusID `json:"nexus"`
}

// VolumeOpKind enumerates the operations a VolumeSpec's write-ahead log can
// record.
type VolumeOpKind string

const (
	VolumeOpCreate    VolumeOpKind = "Create"
	VolumeOpDestroy   VolumeOpKind = "Destroy"
	VolumeOpPublish   VolumeOpKind = "Publish"
	VolumeOpUnpublish VolumeOpKind = "Unpublish"
)

type VolumeOperation struct {
	Kind   VolumeOpKind  `json:"kind"`
	Target *VolumeTarget `json:"target,omitempty"`
}

// CreateVolume is the request shape for creating a volume.
type CreateVolume struct {
	ID          VolumeID          `json:"uuid"`
	Size        uint64            `json:"size"`
	NumReplicas uint8             `json:"numReplicas"`
	Protocol    Protocol          `json:"protocol"`
	Labels      map[string]string `json:"labels,omitempty"`
	Policy      VolumePolicy      `json:"policy"`
}

// PublishVolume requests that the volume be exposed to a consumer through a
// nexus, optionally pinned to a preferred node.
type PublishVolume struct {
	ID           VolumeID `json:"uuid"`
	PreferedNode NodeID   `json:"preferedNode,omitempty"`
	Protocol     Protocol `json:"protocol"`
}

// UnpublishVolume tears down the publishing nexus.
type UnpublishVolume struct {
	ID VolumeID `json:"uuid"`
}

// VolumeSpec is the desired state of a volume: how many replicas must back
// it, its size and protocol, and (once published) the nexus realizing it.
type VolumeSpec struct {
	ID          VolumeID          `json:"uuid"`
	Size        uint64            `json:"size"`
	NumReplicas uint8             `json:"numReplicas"`
	Protocol    Protocol          `json:"protocol"`
	Labels      map[string]string `json:"labels,omitempty"`
	Policy      VolumePolicy      `json:"policy"`
	Target      *VolumeTarget     `json:"target,omitempty"`

	Status    SpecStatus                       `json:"state"`
	Updating  bool                             `json:"-"`
	Operation *OperationRecord[VolumeOperation] `json:"operation,omitempty"`
}

func VolumeSpecFromCreate(req *CreateVolume) *VolumeSpec {
	return &VolumeSpec{
		ID:          req.ID,
		Size:        req.Size,
		NumReplicas: req.NumReplicas,
		Protocol:    req.Protocol,
		Labels:      req.Labels,
		Policy:      req.Policy,
		Status:      Creating(),
	}
}

func (v *VolumeSpec) Matches(req *CreateVolume) bool {
	return v.ID == req.ID && v.Size == req.Size && v.NumReplicas == req.NumReplicas &&
		v.Protocol == req.Protocol
}

func (v *VolumeSpec) Clone() *VolumeSpec {
	c := *v
	if v.Labels != nil {
		c.Labels = make(map[string]string, len(v.Labels))
		for k, val := range v.Labels {
			c.Labels[k] = val
		}
	}
	if v.Target != nil {
		t := *v.Target
		c.Target = &t
	}
	if v.Operation != nil {
		op := *v.Operation
		c.Operation = &op
	}
	return &c
}

func (v *VolumeSpec) Key() string  { return "VolumeSpec/" + string(v.ID) }
func (v *VolumeSpec) Kind() string { return "Volume" }
func (v *VolumeSpec) UUID() string { return string(v.ID) }

func (v *VolumeSpec) State() Lifecycle     { return v.Status.Lifecycle }
func (v *VolumeSpec) SetState(l Lifecycle) { v.Status.Lifecycle = l }
func (v *VolumeSpec) Dirty() bool          { return v.Operation.Dirty() }
func (v *VolumeSpec) IsUpdating() bool     { return v.Updating }
func (v *VolumeSpec) SetUpdating(u bool)   { v.Updating = u }

// Owned always reports false: nothing above a volume references it by id.
func (v *VolumeSpec) Owned() bool { return false }

// StatusSynced always reports true: a volume has no States Cache entry of
// its own (the handlers pass it an observed status of Unknown), so there is
// nothing for this guard to compare against.
func (v *VolumeSpec) StatusSynced(_ ObservedStatus) bool { return true }

// Published reports whether the volume currently has a publishing nexus.
func (v *VolumeSpec) Published() bool { return v.Target != nil }

func (v *VolumeSpec) StartCreateOp() {
	v.Updating = true
	v.Operation = &OperationRecord[VolumeOperation]{Op: VolumeOperation{Kind: VolumeOpCreate}}
}

func (v *VolumeSpec) StartDestroyOp() {
	v.Updating = true
	v.Operation = &OperationRecord[VolumeOperation]{Op: VolumeOperation{Kind: VolumeOpDestroy}}
}

// VolumeUpdateOp is the UpdateOp type for VolumeSpec: publish or unpublish.
type VolumeUpdateOp struct {
	Publish   *VolumeTarget
	Unpublish bool
}

func (v *VolumeSpec) StartUpdateOp(_ ObservedStatus, op VolumeUpdateOp) error {
	if op.Unpublish {
		if v.Target == nil {
			return errNotPublished
		}
		v.Updating = true
		v.Operation = &OperationRecord[VolumeOperation]{Op: VolumeOperation{Kind: VolumeOpUnpublish}}
		return nil
	}
	if v.Target != nil {
		return errAlreadyPublished
	}
	v.Updating = true
	v.Operation = &OperationRecord[VolumeOperation]{Op: VolumeOperation{Kind: VolumeOpPublish, Target: op.Publish}}
	return nil
}

func (v *VolumeSpec) CommitOp() {
	if v.Operation != nil {
		switch v.Operation.Op.Kind {
		case VolumeOpCreate:
			v.Status = Created(StatusOnline)
		case VolumeOpDestroy:
			v.Status = Deleted()
		case VolumeOpPublish:
			v.Target = v.Operation.Op.Target
		case VolumeOpUnpublish:
			v.Target = nil
		}
	}
	v.ClearOp()
}

func (v *VolumeSpec) ClearOp() {
	v.Operation = nil
	v.Updating = false
}

func (v *VolumeSpec) SetOpResult(result bool) {
	if v.Operation != nil {
		v.Operation.Result = boolPtr(result)
	}
	v.Updating = false
}
