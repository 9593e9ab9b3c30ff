package reconciler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cuemby/agent-core/pkg/log"
	"github.com/cuemby/agent-core/pkg/metrics"
	"github.com/cuemby/agent-core/pkg/registry"
	"github.com/cuemby/agent-core/pkg/types"
	"github.com/rs/zerolog"
)

// errSideEffectFailed is the sentinel passed to a spec engine's CompleteX
// call when the reconciler is replaying a dirty operation whose side effect
// is recorded as having failed (OperationRecord.Result == false); the
// engine only branches on nil-vs-non-nil, so the message is never surfaced.
var errSideEffectFailed = errors.New("reconciler: replaying a failed side effect")

// sideEffectErr translates an OperationRecord's recorded outcome back into
// the nil/non-nil shape CompleteCreate/CompleteUpdate/CompleteDestroy need.
func sideEffectErr(result *bool) error {
	if result != nil && *result {
		return nil
	}
	return errSideEffectFailed
}

// Reconciler is the Dirty-Spec Reconciler: it scans the replica, nexus and
// pool spec engines for any spec whose write-ahead log recorded an operation
// outcome (Dirty()) that never made it into the last durably-written spec,
// and resolves it by calling the matching CompleteCreate/CompleteUpdate/
// CompleteDestroy on the engine. A dirty spec means the data-plane call
// concluded but the agent crashed (or the store write failed) before the
// resulting state could be persisted — this loop is what converges the
// store back to a consistent state after such a crash.
type Reconciler struct {
	reg    *registry.Registry
	logger zerolog.Logger

	mu     sync.RWMutex
	stopCh chan struct{}
}

func NewReconciler(reg *registry.Registry) *Reconciler {
	return &Reconciler{
		reg:    reg,
		logger: log.WithComponent("reconciler"),
		stopCh: make(chan struct{}),
	}
}

// Start begins the reconciliation loop in its own goroutine.
func (r *Reconciler) Start() {
	go r.run()
}

func (r *Reconciler) Stop() {
	close(r.stopCh)
}

// run alternates between reg.timing.ReconcilePeriod (a pass found and fixed
// something) and ReconcileIdlePeriod (a pass found nothing), so a busy
// cluster converges quickly while an idle one does not spin needlessly.
func (r *Reconciler) run() {
	r.logger.Info().Msg("reconciler started")

	wait := r.reg.TimingConfig().ReconcileIdlePeriod
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			fixed := r.reconcile()
			if fixed > 0 {
				wait = r.reg.TimingConfig().ReconcilePeriod
			} else {
				wait = r.reg.TimingConfig().ReconcileIdlePeriod
			}
			timer.Reset(wait)
		case <-r.stopCh:
			r.logger.Info().Msg("reconciler stopped")
			return
		case <-r.reg.StopCh():
			r.logger.Info().Msg("reconciler stopped (registry shutdown)")
			return
		}
	}
}

// reconcile runs one pass and returns how many dirty specs it resolved.
func (r *Reconciler) reconcile() int {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ReconciliationDuration)
		metrics.ReconciliationCyclesTotal.Inc()
	}()

	r.mu.Lock()
	defer r.mu.Unlock()

	fixed := r.reconcileReplicas() + r.reconcileNexuses() + r.reconcilePools()
	if fixed > 0 {
		r.logger.Info().Int("resolved", fixed).Msg("reconciliation pass resolved dirty specs")
	}
	return fixed
}

func (r *Reconciler) reconcileReplicas() int {
	ctx := context.Background()
	fixed := 0
	for _, rep := range r.reg.Replicas.Resources().ToSlice() {
		if rep.Operation == nil || !rep.Operation.Dirty() {
			continue
		}
		logger := log.WithResourceID("Replica", string(rep.ID))
		se := sideEffectErr(rep.Operation.Result)
		var err error
		switch rep.Operation.Op.Kind {
		case types.ReplicaOpCreate:
			_, err = r.reg.Replicas.CompleteCreate(ctx, string(rep.ID), se)
		case types.ReplicaOpDestroy:
			_, err = r.reg.Replicas.CompleteDestroy(ctx, string(rep.ID), se)
		default:
			_, err = r.reg.Replicas.CompleteUpdate(ctx, string(rep.ID), se)
		}
		if errors.Is(err, errSideEffectFailed) {
			err = nil
		}
		outcome := "resolved"
		if err != nil {
			outcome = "failed"
			logger.Error().Err(err).Msg("failed to resolve dirty replica spec, will retry next pass")
		} else {
			fixed++
			logger.Debug().Msg("resolved dirty replica spec")
		}
		metrics.ReconciledSpecsTotal.WithLabelValues("Replica", outcome).Inc()
	}
	return fixed
}

func (r *Reconciler) reconcileNexuses() int {
	ctx := context.Background()
	fixed := 0
	for _, nx := range r.reg.Nexuses.Resources().ToSlice() {
		if nx.Operation == nil || !nx.Operation.Dirty() {
			continue
		}
		logger := log.WithResourceID("Nexus", string(nx.ID))
		se := sideEffectErr(nx.Operation.Result)
		var err error
		switch nx.Operation.Op.Kind {
		case types.NexusOpCreate:
			_, err = r.reg.Nexuses.CompleteCreate(ctx, string(nx.ID), se)
		case types.NexusOpDestroy:
			_, err = r.reg.Nexuses.CompleteDestroy(ctx, string(nx.ID), se)
		default:
			_, err = r.reg.Nexuses.CompleteUpdate(ctx, string(nx.ID), se)
		}
		if errors.Is(err, errSideEffectFailed) {
			err = nil
		}
		outcome := "resolved"
		if err != nil {
			outcome = "failed"
			logger.Error().Err(err).Msg("failed to resolve dirty nexus spec, will retry next pass")
		} else {
			fixed++
			logger.Debug().Msg("resolved dirty nexus spec")
		}
		metrics.ReconciledSpecsTotal.WithLabelValues("Nexus", outcome).Inc()
	}
	return fixed
}

// reconcilePools mirrors reconcileReplicas/reconcileNexuses. PoolOperation
// has no Update variant (a pool is only ever created or destroyed), so
// there is no third switch arm.
func (r *Reconciler) reconcilePools() int {
	ctx := context.Background()
	fixed := 0
	for _, pl := range r.reg.Pools.Resources().ToSlice() {
		if pl.Operation == nil || !pl.Operation.Dirty() {
			continue
		}
		logger := log.WithResourceID("Pool", string(pl.ID))
		se := sideEffectErr(pl.Operation.Result)
		var err error
		switch pl.Operation.Op {
		case types.PoolOpCreate:
			_, err = r.reg.Pools.CompleteCreate(ctx, string(pl.ID), se)
		case types.PoolOpDestroy:
			_, err = r.reg.Pools.CompleteDestroy(ctx, string(pl.ID), se)
		}
		if errors.Is(err, errSideEffectFailed) {
			err = nil
		}
		outcome := "resolved"
		if err != nil {
			outcome = "failed"
			logger.Error().Err(err).Msg("failed to resolve dirty pool spec, will retry next pass")
		} else {
			fixed++
			logger.Debug().Msg("resolved dirty pool spec")
		}
		metrics.ReconciledSpecsTotal.WithLabelValues("Pool", outcome).Inc()
	}
	return fixed
}
