package types

// PoolOperation enumerates the operations a PoolSpec's write-ahead log can
// record.
type PoolOperation string

const (
	PoolOpCreate  PoolOperation = "Create"
	PoolOpDestroy PoolOperation = "Destroy"
)

// CreatePool is the request shape for creating a pool.
type CreatePool struct {
	ID     PoolID   `json:"id"`
	Node   NodeID   `json:"node"`
	Disks  []string `json:"disks"`
	Labels map[string]string `json:"labels,omitempty"`
}

// PoolSpec is the desired state of a pool: the node it lives on, the disks
// backing it, and optional placement labels.
type PoolSpec struct {
	ID     PoolID            `json:"id"`
	Node   NodeID            `json:"node"`
	Disks  []string          `json:"disks"`
	Labels map[string]string `json:"labels,omitempty"`

	Status    SpecStatus                    `json:"state"`
	Updating  bool                          `json:"-"`
	Operation *OperationRecord[PoolOperation] `json:"operation,omitempty"`
}

func PoolSpecFromCreate(req *CreatePool) *PoolSpec {
	return &PoolSpec{
		ID:     req.ID,
		Node:   req.Node,
		Disks:  append([]string(nil), req.Disks...),
		Labels: req.Labels,
		Status: Creating(),
	}
}

// Matches implements the idempotent-retry comparison used by start_create:
// a create retry while the spec is still Creating must carry identical
// parameters, or it is a ReCreateMismatch.
func (p *PoolSpec) Matches(req *CreatePool) bool {
	if p.ID != req.ID || p.Node != req.Node || len(p.Disks) != len(req.Disks) {
		return false
	}
	for i := range p.Disks {
		if p.Disks[i] != req.Disks[i] {
			return false
		}
	}
	return true
}

func (p *PoolSpec) Clone() *PoolSpec {
	c := *p
	c.Disks = append([]string(nil), p.Disks...)
	if p.Labels != nil {
		c.Labels = make(map[string]string, len(p.Labels))
		for k, v := range p.Labels {
			c.Labels[k] = v
		}
	}
	if p.Operation != nil {
		op := *p.Operation
		c.Operation = &op
	}
	return &c
}

func (p *PoolSpec) Key() string  { return "PoolSpec/" + string(p.ID) }
func (p *PoolSpec) Kind() string { return "Pool" }
func (p *PoolSpec) UUID() string { return string(p.ID) }

func (p *PoolSpec) State() Lifecycle        { return p.Status.Lifecycle }
func (p *PoolSpec) SetState(l Lifecycle)    { p.Status.Lifecycle = l }
func (p *PoolSpec) Dirty() bool             { return p.Operation.Dirty() }
func (p *PoolSpec) IsUpdating() bool        { return p.Updating }
func (p *PoolSpec) SetUpdating(u bool)      { p.Updating = u }
func (p *PoolSpec) Owned() bool             { return false }

// StatusSynced always reports true: pools have no update verb in this spec
// (only create/destroy), so StartUpdate never actually consults this guard
// for a PoolSpec.
func (p *PoolSpec) StatusSynced(_ ObservedStatus) bool { return true }

func (p *PoolSpec) StartCreateOp() {
	p.Updating = true
	p.Operation = &OperationRecord[PoolOperation]{Op: PoolOpCreate}
}

func (p *PoolSpec) StartDestroyOp() {
	p.Updating = true
	p.Operation = &OperationRecord[PoolOperation]{Op: PoolOpDestroy}
}

// StartUpdateOp is unused: PoolSpec has no UpdateOp in this spec (pools are
// only created and destroyed).
func (p *PoolSpec) StartUpdateOp(_ ObservedStatus, _ struct{}) error { return nil }

func (p *PoolSpec) CommitOp() {
	if p.Operation != nil {
		switch p.Operation.Op {
		case PoolOpCreate:
			p.Status = Created(StatusOnline)
		case PoolOpDestroy:
			p.Status = Deleted()
		}
	}
	p.ClearOp()
}

func (p *PoolSpec) ClearOp() {
	p.Operation = nil
	p.Updating = false
}

func (p *PoolSpec) SetOpResult(result bool) {
	if p.Operation != nil {
		p.Operation.Result = boolPtr(result)
	}
	p.Updating = false
}
