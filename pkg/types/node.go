package types

// NodeAdminState is the desired administrative state of a node, set by an
// operator (as opposed to Status, which is observed).
type NodeAdminState string

const (
	NodeAdminStateOnline  NodeAdminState = "Online"
	NodeAdminStateCordon  NodeAdminState = "Cordoned"
	NodeAdminStateOffline NodeAdminState = "Offline"
)

// NodeSpec is the desired state of a data-plane node: its gRPC endpoint,
// labels for placement, and admin state.
//
// Unlike Pool/Replica/Nexus/Volume, NodeSpec is not driven through the full
// create/destroy transaction engine: nodes are registered and deregistered
// directly through Registry.RegisterNode/DeregisterNode (from the bootstrap
// file or the handlers' RegisterNode/DeregisterNode), and the node-polling
// subsystem only records their runtime status (see SPEC_FULL.md's
// "NodeSpec lifecycle" note). It still carries the common envelope so it
// can live in the same generic ResourceMap.
type NodeSpec struct {
	ID       NodeID            `json:"id"`
	Endpoint string            `json:"endpoint"`
	Labels   map[string]string `json:"labels,omitempty"`
	Admin    NodeAdminState    `json:"adminState"`

	Status    SpecStatus                    `json:"state"`
	Updating  bool                          `json:"-"`
	Operation *OperationRecord[NodeOperation] `json:"operation,omitempty"`
}

// NodeOperation enumerates the operations a NodeSpec's write-ahead log can
// record. Nodes only ever register/deregister, so the set is small.
type NodeOperation string

const (
	NodeOpRegister   NodeOperation = "Register"
	NodeOpDeregister NodeOperation = "Deregister"
)

func (n *NodeSpec) Clone() *NodeSpec {
	c := *n
	if n.Labels != nil {
		c.Labels = make(map[string]string, len(n.Labels))
		for k, v := range n.Labels {
			c.Labels[k] = v
		}
	}
	if n.Operation != nil {
		op := *n.Operation
		c.Operation = &op
	}
	return &c
}

func (n *NodeSpec) Key() string  { return "NodeSpec/" + string(n.ID) }
func (n *NodeSpec) Kind() string { return "Node" }
func (n *NodeSpec) UUID() string { return string(n.ID) }
