// Package handlers implements the Public Request Handlers (spec.md §4.8):
// for every verb the core agent serves, look up (or create) the spec
// handle, call start_<verb>, perform the data-plane gRPC call through
// connect_locked, then call complete_<verb> with the outcome. A handler
// method never holds business logic beyond that three-step assembly and
// shaping the reply — the spec engine and the registry own everything
// else.
package handlers

import (
	"context"

	"github.com/cuemby/agent-core/pkg/log"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/rpc"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/rs/zerolog"
)

// Handlers is the entry point bus consumers (or a future REST gateway,
// out of scope here) call into. It holds no state of its own beyond the
// registry it wraps.
type Handlers struct {
	reg    *registry.Registry
	logger zerolog.Logger
}

func New(reg *registry.Registry) *Handlers {
	return &Handlers{reg: reg, logger: log.WithComponent("handlers")}
}

// connectLocked resolves node's gRPC context and acquires its per-node
// serialization lock, the shared first step of every mutating handler.
func (h *Handlers) connectLocked(ctx context.Context, node types.NodeID) (rpc.Client, func(), error) {
	gctx, err := h.reg.NodeGRPC(node)
	if err != nil {
		return nil, nil, err
	}
	return gctx.ConnectLocked(ctx)
}

// GetNodes returns every registered node.
func (h *Handlers) GetNodes(_ context.Context) []*types.NodeSpec {
	return h.reg.Nodes()
}

// RegisterNode adds or replaces a node spec. Nodes bypass the full
// create/destroy transaction engine (see pkg/types/node.go); the
// node-polling subsystem only records their runtime status afterwards.
func (h *Handlers) RegisterNode(ctx context.Context, n *types.NodeSpec) error {
	return h.reg.RegisterNode(ctx, n)
}

// DeregisterNode removes a node spec and tears down its gRPC context.
func (h *Handlers) DeregisterNode(ctx context.Context, id types.NodeID) error {
	return h.reg.DeregisterNode(ctx, id)
}
