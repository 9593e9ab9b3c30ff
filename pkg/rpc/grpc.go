// Package rpc is the Per-Node gRPC Context and data-plane client surface
// (§4.4): a per-node channel plus the FIFO serialization lock that
// guarantees at most one in-flight mutating call per node. Wire stubs
// themselves are out of scope (§1) — DataPlaneClient below is a
// hand-written interface over raw unary Invoke calls rather than generated
// protobuf code, so the contract the engine depends on (one call in,
// one reply or error, out) is real without requiring a .proto compile step.
package rpc

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the set of data-plane verbs the core agent emits (§6, "gRPC
// verbs emitted"). Every method carries its own context so the caller
// controls per-call deadlines independent of the connect timeout.
type Client interface {
	CreatePool(ctx context.Context, req *types.CreatePool) error
	DestroyPool(ctx context.Context, id types.PoolID) error
	ListPools(ctx context.Context) ([]PoolInfo, error)

	CreateReplica(ctx context.Context, req *types.CreateReplica) (ReplicaInfo, error)
	DestroyReplica(ctx context.Context, id types.ReplicaID) error
	ListReplicas(ctx context.Context) ([]ReplicaInfo, error)
	ShareReplica(ctx context.Context, id types.ReplicaID, proto types.ReplicaShareProtocol) (string, error)
	UnshareReplica(ctx context.Context, id types.ReplicaID) error

	CreateNexus(ctx context.Context, req *types.CreateNexus) (NexusInfo, error)
	DestroyNexus(ctx context.Context, id types.NexusID) error
	ListNexus(ctx context.Context) ([]NexusInfo, error)
	PublishNexus(ctx context.Context, id types.NexusID, proto types.Protocol) (string, error)
	UnpublishNexus(ctx context.Context, id types.NexusID) error
	AddChildNexus(ctx context.Context, id types.NexusID, child types.ChildUri) error
	RemoveChildNexus(ctx context.Context, id types.NexusID, child types.ChildUri) error
}

// PoolInfo, ReplicaInfo and NexusInfo are the observed-state shapes a
// ListX call reports; pkg/nodepoll folds these into the States Cache.
type PoolInfo struct {
	ID       types.PoolID
	Status   types.RuntimeStatus
	Capacity uint64
	Used     uint64
}

type ReplicaInfo struct {
	ID     types.ReplicaID
	Status types.RuntimeStatus
	Share  types.Protocol
	URI    string
}

type NexusInfo struct {
	ID       types.NexusID
	Status   types.RuntimeStatus
	Share    types.Protocol
	Children []types.ChildUri
}

// Timeouts bounds connection setup and per-request duration; Context
// applies Connect once per dial and Request per call.
type Timeouts struct {
	Connect time.Duration
	Request time.Duration
}

// Context is the per-node gRPC context: one is held per known node by the
// Registry (pkg/registry), created lazily on first use.
type Context struct {
	node     types.NodeID
	endpoint string
	timeouts Timeouts
	lock     fairMutex

	mu   sync.Mutex
	conn *grpc.ClientConn
}

func NewContext(node types.NodeID, endpoint string, timeouts Timeouts) *Context {
	return &Context{node: node, endpoint: endpoint, timeouts: timeouts}
}

func (c *Context) dial(ctx context.Context) (*grpc.ClientConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && c.conn.GetState().String() != "SHUTDOWN" {
		return c.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.timeouts.Connect)
	defer cancel()

	conn, err := grpc.DialContext(dialCtx, c.endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, svcerr.GrpcConnectTimeout(string(c.node), c.endpoint)
		}
		return nil, svcerr.GrpcConnect(string(c.node), err)
	}
	c.conn = conn
	return conn, nil
}

// Connect opens (or reuses) the channel under the connect timeout, with no
// serialization lock. Used for read-only queries (ListPools, ListReplicas,
// ListNexus) where concurrent callers are safe to interleave.
func (c *Context) Connect(ctx context.Context) (Client, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	return &client{conn: conn, node: c.node, timeout: c.timeouts.Request}, nil
}

// ConnectLocked acquires the per-node FIFO lock first, then connects. Used
// for every mutating verb (create/destroy/share/publish/child) to guarantee
// at most one in-flight mutating call per node (invariant in §8). The
// returned release function must be called exactly once, after the
// data-plane call has returned — the lock is held across that call, not
// just the dial. The handlers release it before calling Complete*.
func (c *Context) ConnectLocked(ctx context.Context) (Client, func(), error) {
	c.lock.Lock()
	conn, err := c.dial(ctx)
	if err != nil {
		c.lock.Unlock()
		return nil, nil, err
	}
	cl := &client{conn: conn, node: c.node, timeout: c.timeouts.Request}
	return cl, c.lock.Unlock, nil
}

func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// client is the Client implementation backing both Connect and
// ConnectLocked; every method is a raw unary Invoke against a fixed method
// path, since no generated stub exists in this scope (§1).
type client struct {
	conn    *grpc.ClientConn
	node    types.NodeID
	timeout time.Duration
}

func (c *client) call(ctx context.Context, method string, req, reply any) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.conn.Invoke(callCtx, method, req, reply); err != nil {
		return err
	}
	return nil
}

const (
	methodCreatePool       = "/dataplane.v1.DataPlane/CreatePool"
	methodDestroyPool      = "/dataplane.v1.DataPlane/DestroyPool"
	methodListPools        = "/dataplane.v1.DataPlane/ListPools"
	methodCreateReplica    = "/dataplane.v1.DataPlane/CreateReplica"
	methodDestroyReplica   = "/dataplane.v1.DataPlane/DestroyReplica"
	methodListReplicas     = "/dataplane.v1.DataPlane/ListReplicas"
	methodShareReplica     = "/dataplane.v1.DataPlane/ShareReplica"
	methodUnshareReplica   = "/dataplane.v1.DataPlane/UnshareReplica"
	methodCreateNexus      = "/dataplane.v1.DataPlane/CreateNexus"
	methodDestroyNexus     = "/dataplane.v1.DataPlane/DestroyNexus"
	methodListNexus        = "/dataplane.v1.DataPlane/ListNexus"
	methodPublishNexus     = "/dataplane.v1.DataPlane/PublishNexus"
	methodUnpublishNexus   = "/dataplane.v1.DataPlane/UnpublishNexus"
	methodAddChildNexus    = "/dataplane.v1.DataPlane/AddChildNexus"
	methodRemoveChildNexus = "/dataplane.v1.DataPlane/RemoveChildNexus"
)

func (c *client) CreatePool(ctx context.Context, req *types.CreatePool) error {
	return c.call(ctx, methodCreatePool, req, &struct{}{})
}

func (c *client) DestroyPool(ctx context.Context, id types.PoolID) error {
	return c.call(ctx, methodDestroyPool, poolRef{ID: id}, &struct{}{})
}

func (c *client) ListPools(ctx context.Context) ([]PoolInfo, error) {
	var out []PoolInfo
	err := c.call(ctx, methodListPools, nodeRef{Node: c.node}, &out)
	return out, err
}

func (c *client) CreateReplica(ctx context.Context, req *types.CreateReplica) (ReplicaInfo, error) {
	var out ReplicaInfo
	err := c.call(ctx, methodCreateReplica, req, &out)
	return out, err
}

func (c *client) DestroyReplica(ctx context.Context, id types.ReplicaID) error {
	return c.call(ctx, methodDestroyReplica, replicaRef{ID: id}, &struct{}{})
}

func (c *client) ListReplicas(ctx context.Context) ([]ReplicaInfo, error) {
	var out []ReplicaInfo
	err := c.call(ctx, methodListReplicas, nodeRef{Node: c.node}, &out)
	return out, err
}

func (c *client) ShareReplica(ctx context.Context, id types.ReplicaID, proto types.ReplicaShareProtocol) (string, error) {
	var out struct{ URI string }
	err := c.call(ctx, methodShareReplica, shareReq{ID: string(id), Protocol: string(proto)}, &out)
	return out.URI, err
}

func (c *client) UnshareReplica(ctx context.Context, id types.ReplicaID) error {
	return c.call(ctx, methodUnshareReplica, replicaRef{ID: id}, &struct{}{})
}

func (c *client) CreateNexus(ctx context.Context, req *types.CreateNexus) (NexusInfo, error) {
	var out NexusInfo
	err := c.call(ctx, methodCreateNexus, req, &out)
	return out, err
}

func (c *client) DestroyNexus(ctx context.Context, id types.NexusID) error {
	return c.call(ctx, methodDestroyNexus, nexusRef{ID: id}, &struct{}{})
}

func (c *client) ListNexus(ctx context.Context) ([]NexusInfo, error) {
	var out []NexusInfo
	err := c.call(ctx, methodListNexus, nodeRef{Node: c.node}, &out)
	return out, err
}

func (c *client) PublishNexus(ctx context.Context, id types.NexusID, proto types.Protocol) (string, error) {
	var out struct{ URI string }
	err := c.call(ctx, methodPublishNexus, shareReq{ID: string(id), Protocol: string(proto)}, &out)
	return out.URI, err
}

func (c *client) UnpublishNexus(ctx context.Context, id types.NexusID) error {
	return c.call(ctx, methodUnpublishNexus, nexusRef{ID: id}, &struct{}{})
}

func (c *client) AddChildNexus(ctx context.Context, id types.NexusID, child types.ChildUri) error {
	return c.call(ctx, methodAddChildNexus, childReq{ID: id, Child: child}, &struct{}{})
}

func (c *client) RemoveChildNexus(ctx context.Context, id types.NexusID, child types.ChildUri) error {
	return c.call(ctx, methodRemoveChildNexus, childReq{ID: id, Child: child}, &struct{}{})
}

type nodeRef struct {
	Node types.NodeID `json:"node"`
}

type poolRef struct {
	ID types.PoolID `json:"id"`
}

type replicaRef struct {
	ID types.ReplicaID `json:"id"`
}

type nexusRef struct {
	ID types.NexusID `json:"id"`
}

type shareReq struct {
	ID       string `json:"id"`
	Protocol string `json:"protocol"`
}

type childReq struct {
	ID    types.NexusID  `json:"id"`
	Child types.ChildUri `json:"child"`
}
