// Package specs implements the transactional state machine shared by every
// resource kind's spec: a small set of operations — start/complete create,
// start/complete update, start/complete destroy — applied uniformly over a
// capability set rather than duplicated per kind. A single Engine
// instantiation, parameterized by the concrete spec/create-request/update-op
// triple, backs each of pkg/types' four transactional resource kinds (pool,
// replica, nexus, volume).
package specs

import (
	"context"

	"github.com/cuemby/agent-core/pkg/resourcemap"
	"github.com/cuemby/agent-core/pkg/svcerr"
	"github.com/cuemby/agent-core/pkg/types"
)

// Spec is the capability set the engine requires of a resource kind's spec
// type T, parameterized by its create-request type C and update-op type U.
// *PoolSpec, *ReplicaSpec, *NexusSpec and *VolumeSpec implement it. NodeSpec
// does not and never goes through the engine: nodes are added and removed
// by Registry.RegisterNode/DeregisterNode (see pkg/registry).
type Spec[T any, C any, U any] interface {
	Key() string
	Kind() string
	UUID() string

	State() types.Lifecycle
	SetState(types.Lifecycle)
	Dirty() bool
	IsUpdating() bool
	SetUpdating(bool)
	Owned() bool
	StatusSynced(types.ObservedStatus) bool

	Matches(*C) bool
	Clone() T

	StartCreateOp()
	StartDestroyOp()
	StartUpdateOp(types.ObservedStatus, U) error
	CommitOp()
	ClearOp()
	SetOpResult(bool)
}

// Store is the subset of the Key-Value Store Adapter (§4.1) the engine
// needs: put and delete of a single object, each timeout-bounded by the
// implementation.
type Store interface {
	PutObj(ctx context.Context, key string, value any) error
	DeleteObj(ctx context.Context, key string) error
}

// Engine drives the create/update/destroy transaction for one resource
// kind. T is the concrete spec pointer type (e.g. *types.PoolSpec); C its
// create-request type; U its update-op type.
type Engine[T Spec[T, C, U], C any, U any] struct {
	resource  svcerr.Resource
	resources *resourcemap.Map[string, T]
	store     Store
}

// New builds an Engine backed by resources, which the caller is expected to
// have already populated (e.g. via Registry.Init) before serving requests.
func New[T Spec[T, C, U], C any, U any](resource svcerr.Resource, resources *resourcemap.Map[string, T], store Store) *Engine[T, C, U] {
	return &Engine[T, C, U]{resource: resource, resources: resources, store: store}
}

// Resources exposes the backing map for read-only listing handlers.
func (e *Engine[T, C, U]) Resources() *resourcemap.Map[string, T] { return e.resources }

func (e *Engine[T, C, U]) busy(spec T, id string) error {
	if spec.IsUpdating() {
		return svcerr.Conflict(e.resource, id)
	}
	if spec.Dirty() {
		return svcerr.PendingReconcile(e.resource, id)
	}
	return nil
}

// StartCreate begins creating the resource identified by id from req. If a
// spec already exists for id, it is either adopted (the request is an
// idempotent retry of an in-flight create) or rejected per the state guard
// below. Otherwise a fresh spec is built by factory, recorded as Creating,
// and persisted; the caller then performs the external side effect (e.g. a
// gRPC call) and reports its outcome through CompleteCreate.
func (e *Engine[T, C, U]) StartCreate(ctx context.Context, id string, req *C, factory func(*C) T) (T, error) {
	var zero T

	newSpec := factory(req)
	newSpec.StartCreateOp()

	// GetOrInsertLocked performs the check-then-insert under a single lock,
	// so two concurrent StartCreate calls for the same absent id can never
	// both insert: the loser always lands in the !created branch below and
	// observes the winner's handle instead of clobbering it in byID.
	h, created := e.resources.GetOrInsertLocked(id, newSpec)
	defer h.Unlock()

	if !created {
		spec := h.Peek()
		// An identical retry of a create that is still in flight adopts it
		// rather than failing the busy check below.
		if spec.IsUpdating() && spec.State() == types.LifecycleCreating && spec.Matches(req) {
			return spec, nil
		}
		if err := e.busy(spec, id); err != nil {
			return spec, err
		}
		switch spec.State() {
		case types.LifecycleCreating:
			if spec.Matches(req) {
				return spec, nil
			}
			return spec, svcerr.ReCreateMismatch(e.resource, id)
		case types.LifecycleCreated:
			return spec, svcerr.AlreadyExists(e.resource, id)
		default: // Deleting, Deleted
			return spec, svcerr.Deleting(e.resource, id)
		}
	}

	spec := h.Peek()
	clone := spec.Clone()
	if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
		spec.ClearOp()
		e.resources.Remove(id)
		return zero, svcerr.StoreSave(e.resource, id, err)
	}
	return spec, nil
}

// CompleteCreate reports the outcome of the external side effect started by
// StartCreate. sideEffectErr is nil on success.
func (e *Engine[T, C, U]) CompleteCreate(ctx context.Context, id string, sideEffectErr error) (T, error) {
	return e.completeMutation(ctx, id, sideEffectErr)
}

// StartDestroy begins destroying the resource identified by id. delOwned
// must be true to destroy a spec that reports Owned() — otherwise the call
// fails with InUse. Destroying an already-Deleted (or absent) spec is a
// no-op success, matching idempotent-retry semantics.
func (e *Engine[T, C, U]) StartDestroy(ctx context.Context, id string, delOwned bool) (T, error) {
	var zero T

	h := e.resources.Get(id)
	if h == nil {
		return zero, nil
	}
	spec := h.Lock()
	defer h.Unlock()

	if err := e.busy(spec, id); err != nil {
		return spec, err
	}
	if spec.State() == types.LifecycleDeleted {
		return spec, nil
	}
	if spec.Owned() && !delOwned {
		return spec, svcerr.InUse(e.resource, id)
	}

	spec.StartDestroyOp()
	spec.SetState(types.LifecycleDeleting)

	clone := spec.Clone()
	if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
		spec.ClearOp()
		return spec, svcerr.StoreSave(e.resource, id, err)
	}
	return spec, nil
}

// CompleteDestroy reports the outcome of the external side effect started
// by StartDestroy. On side-effect and store-delete success, the spec is
// also removed from the resource map.
func (e *Engine[T, C, U]) CompleteDestroy(ctx context.Context, id string, sideEffectErr error) (T, error) {
	var zero T

	h := e.resources.Get(id)
	if h == nil {
		return zero, svcerr.NotFound(e.resource, id)
	}
	spec := h.Lock()
	defer h.Unlock()

	if sideEffectErr == nil {
		clone := spec.Clone()
		clone.CommitOp()
		if err := e.store.DeleteObj(ctx, clone.Key()); err != nil {
			spec.SetOpResult(true)
			return spec, svcerr.StoreSave(e.resource, id, err)
		}
		spec.CommitOp()
		e.resources.Remove(id)
		return spec, nil
	}

	clone := spec.Clone()
	clone.ClearOp()
	if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
		spec.SetOpResult(false)
		return spec, svcerr.StoreSave(e.resource, id, err)
	}
	spec.ClearOp()
	return spec, sideEffectErr
}

// StartUpdate begins an in-place update (share/unshare, add/remove child,
// publish/unpublish — whatever U represents for this kind). observed is the
// last States Cache reading for this resource; reconciling lets the
// background reconciler bypass the status_synced guard, since it is the one
// fixing the drift the guard exists to catch.
func (e *Engine[T, C, U]) StartUpdate(ctx context.Context, id string, observed types.ObservedStatus, op U, reconciling bool) (T, error) {
	var zero T

	h := e.resources.Get(id)
	if h == nil {
		return zero, svcerr.NotFound(e.resource, id)
	}
	spec := h.Lock()
	defer h.Unlock()

	if err := e.busy(spec, id); err != nil {
		return spec, err
	}
	switch spec.State() {
	case types.LifecycleCreating:
		return spec, svcerr.PendingCreation(e.resource, id)
	case types.LifecycleDeleting, types.LifecycleDeleted:
		return spec, svcerr.PendingDeletion(e.resource, id)
	case types.LifecycleCreated:
		if !reconciling && !spec.StatusSynced(observed) {
			return spec, svcerr.NotReady(e.resource, id)
		}
	}

	if err := spec.StartUpdateOp(observed, op); err != nil {
		return spec, sentinelToSvcErr(err, e.resource, id)
	}

	clone := spec.Clone()
	if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
		spec.ClearOp()
		return spec, svcerr.StoreSave(e.resource, id, err)
	}
	return spec, nil
}

// CompleteUpdate reports the outcome of the external side effect started by
// StartUpdate.
func (e *Engine[T, C, U]) CompleteUpdate(ctx context.Context, id string, sideEffectErr error) (T, error) {
	return e.completeMutation(ctx, id, sideEffectErr)
}

// completeMutation implements the shared half of complete_create and
// complete_update: both commit-or-clear against a store Put, neither
// touches the resource map's membership (unlike complete_destroy).
func (e *Engine[T, C, U]) completeMutation(ctx context.Context, id string, sideEffectErr error) (T, error) {
	var zero T

	h := e.resources.Get(id)
	if h == nil {
		return zero, svcerr.NotFound(e.resource, id)
	}
	spec := h.Lock()
	defer h.Unlock()

	if sideEffectErr == nil {
		clone := spec.Clone()
		clone.CommitOp()
		if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
			spec.SetOpResult(true)
			return spec, svcerr.StoreSave(e.resource, id, err)
		}
		spec.CommitOp()
		return spec, nil
	}

	clone := spec.Clone()
	clone.ClearOp()
	if err := e.store.PutObj(ctx, clone.Key(), clone); err != nil {
		spec.SetOpResult(false)
		return spec, svcerr.StoreSave(e.resource, id, err)
	}
	spec.ClearOp()
	return spec, sideEffectErr
}

// ValidateUpdateStep re-checks the busy/state guard for a multi-step update
// flow without itself starting an operation, so a caller can check between
// steps whether another request interleaved. No handler in this module
// calls it.
func (e *Engine[T, C, U]) ValidateUpdateStep(id string, observed types.ObservedStatus, reconciling bool) error {
	h := e.resources.Get(id)
	if h == nil {
		return svcerr.NotFound(e.resource, id)
	}
	spec := h.Lock()
	defer h.Unlock()

	if err := e.busy(spec, id); err != nil {
		return err
	}
	switch spec.State() {
	case types.LifecycleCreating:
		return svcerr.PendingCreation(e.resource, id)
	case types.LifecycleDeleting, types.LifecycleDeleted:
		return svcerr.PendingDeletion(e.resource, id)
	case types.LifecycleCreated:
		if !reconciling && !spec.StatusSynced(observed) {
			return svcerr.NotReady(e.resource, id)
		}
	}
	return nil
}

// sentinelToSvcErr maps the handful of sentinel errors a kind's
// StartUpdateOp can return (not-shared, already-shared, duplicate/missing
// child, already/not published) onto the proper svcerr kind. Any other
// error is a broken invariant.
func sentinelToSvcErr(err error, resource svcerr.Resource, id string) error {
	switch {
	case types.ErrNotShared(err):
		return svcerr.NotShared(resource, id)
	case types.ErrAlreadyShared(err):
		return svcerr.AlreadyShared(resource, id)
	case types.ErrChildExists(err):
		return svcerr.ChildAlreadyExists(id, "")
	case types.ErrChildNotFound(err):
		return svcerr.ChildNotFound(id, "")
	case types.ErrNotPublished(err):
		return svcerr.NotPublished(id)
	case types.ErrAlreadyPublished(err):
		return svcerr.AlreadyPublished(id)
	default:
		return svcerr.Internal(err.Error())
	}
}
