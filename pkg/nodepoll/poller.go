// Package nodepoll is the node-polling subsystem referenced by
// pkg/states (the States Cache is "refreshed in bulk by the node-polling
// subsystem") and by pkg/types/node.go's NodeSpec lifecycle note: it
// periodically dials every registered node, lists its pools/replicas/
// nexuses over the unlocked read path, and folds the results into the
// States Cache, and tracks each node's reachability using the same
// consecutive-failure counting pkg/health provides.
package nodepoll

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/agent-core/pkg/health"
	"github.com/cuemby/agent-core/pkg/log"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/states"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/rs/zerolog"
)

// Poller drives the periodic node sweep.
type Poller struct {
	reg    *registry.Registry
	cfg    health.Config
	logger zerolog.Logger

	mu     sync.Mutex
	status map[types.NodeID]*health.Status
	stopCh chan struct{}
}

func New(reg *registry.Registry, cfg health.Config) *Poller {
	return &Poller{
		reg:    reg,
		cfg:    cfg,
		logger: log.WithComponent("nodepoll"),
		status: make(map[types.NodeID]*health.Status),
		stopCh: make(chan struct{}),
	}
}

// Start begins the polling loop in its own goroutine.
func (p *Poller) Start() {
	go p.run()
}

func (p *Poller) Stop() {
	close(p.stopCh)
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.sweep()
	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopCh:
			return
		case <-p.reg.StopCh():
			return
		}
	}
}

// sweep polls every known node once, replacing the States Cache's
// collections wholesale from whatever the reachable nodes reported — a
// node that fails its check simply contributes nothing this round, so its
// resources age out of the cache rather than lingering as stale "Online".
func (p *Poller) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
	defer cancel()

	var pools []states.PoolState
	var replicas []states.ReplicaState
	var nexuses []states.NexusState

	for _, n := range p.reg.Nodes() {
		st := p.statusFor(n.ID)
		if st.InStartPeriod(p.cfg) {
			continue
		}

		result := health.NewTCPChecker(n.Endpoint).WithTimeout(p.cfg.Timeout).Check(ctx)
		st.Update(result, p.cfg)
		if !st.Healthy {
			p.reg.SetNodeRuntimeStatus(n.ID, types.StatusFaulted)
			p.logger.Warn().Str("node", string(n.ID)).Str("endpoint", n.Endpoint).
				Msg("node unreachable")
			continue
		}
		p.reg.SetNodeRuntimeStatus(n.ID, types.StatusOnline)

		nodePools, nodeReplicas, nodeNexuses, err := p.pollNode(ctx, n.ID)
		if err != nil {
			p.logger.Error().Err(err).Str("node", string(n.ID)).Msg("failed to list node resources")
			continue
		}
		pools = append(pools, nodePools...)
		replicas = append(replicas, nodeReplicas...)
		nexuses = append(nexuses, nodeNexuses...)
	}

	p.reg.States().UpdatePools(pools)
	p.reg.States().UpdateReplicas(replicas)
	p.reg.States().UpdateNexuses(nexuses)
}

func (p *Poller) pollNode(ctx context.Context, id types.NodeID) ([]states.PoolState, []states.ReplicaState, []states.NexusState, error) {
	gctx, err := p.reg.NodeGRPC(id)
	if err != nil {
		return nil, nil, nil, err
	}
	cl, err := gctx.Connect(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	poolInfos, err := cl.ListPools(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	replicaInfos, err := cl.ListReplicas(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	nexusInfos, err := cl.ListNexus(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	pools := make([]states.PoolState, 0, len(poolInfos))
	for _, pi := range poolInfos {
		pools = append(pools, states.PoolState{
			ID:       pi.ID,
			Node:     id,
			Status:   pi.Status,
			Capacity: pi.Capacity,
			Used:     pi.Used,
		})
	}

	replicas := make([]states.ReplicaState, 0, len(replicaInfos))
	for _, ri := range replicaInfos {
		pool := types.PoolID("")
		if spec, ok := p.reg.Replica(ri.ID); ok {
			pool = spec.Pool
		}
		replicas = append(replicas, states.ReplicaState{
			ID:     ri.ID,
			Pool:   pool,
			Status: ri.Status,
			Share:  ri.Share,
			URI:    ri.URI,
		})
	}

	nexuses := make([]states.NexusState, 0, len(nexusInfos))
	for _, ni := range nexusInfos {
		nexuses = append(nexuses, states.NexusState{
			ID:       ni.ID,
			Node:     id,
			Status:   ni.Status,
			Share:    ni.Share,
			Children: ni.Children,
		})
	}
	return pools, replicas, nexuses, nil
}

func (p *Poller) statusFor(id types.NodeID) *health.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.status[id]
	if !ok {
		st = health.NewStatus()
		p.status[id] = st
	}
	return st
}
