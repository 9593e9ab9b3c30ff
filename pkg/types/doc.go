/*
Package types defines the persisted resource kinds of the storage fabric
and the shared envelope every one of them carries.

This package contains the fundamental data structures used throughout
agent-core: pools, replicas, nexuses, volumes, and the nodes they run on.
These types are used by every other package for state management, the
message-bus verb layer, and the write-ahead-logged transaction engine.

# Architecture

The types package is the foundation of the agent's data model. It defines:

  - Node identity, endpoint and admin state
  - Pool specifications: the disks backing a node's storage
  - Replica specifications: thin/thick provisioned slices of a pool, with
    an owning volume or nexus set
  - Nexus specifications: a front-end device aggregating one or more
    replica children behind a single share
  - Volume specifications: the user-facing abstraction over a replica set
    and its publishing nexus
  - The shared lifecycle/operation envelope (SpecStatus, OperationRecord)
    every one of the above embeds

# Core Types

Node:
  - NodeSpec: gRPC endpoint, labels, admin state
  - NodeAdminState: Online, Cordoned, Offline

Pool:
  - PoolSpec: disks, labels, owning node
  - PoolOperation: Create or Destroy (no update verb)

Replica:
  - ReplicaSpec: size, pool, thin/thick, share protocol, owners
  - ReplicaOwners: the owning volume and/or nexuses referencing this
    replica as a child
  - ReplicaOperation: Create, Destroy, Share, Unshare

Nexus:
  - NexusSpec: node, children (replica share URIs), share protocol, owner
  - NexusOperation: Create, Destroy, Share, Unshare, AddChild, RemoveChild

Volume:
  - VolumeSpec: size, replica set, publishing nexus
  - VolumeOperation: Create, Destroy, Publish, Unpublish

Shared envelope:
  - Lifecycle: Creating, Created, Deleting, Deleted
  - RuntimeStatus: Online, Degraded, Faulted, Unknown
  - SpecStatus: Lifecycle plus the RuntimeStatus nested inside Created
  - OperationRecord[Op]: the write-ahead log entry recording an in-flight
    operation and, once concluded, whether it should commit or clear

# Usage

Creating a replica:

	req := &types.CreateReplica{
	    ID:   types.NewReplicaID(),
	    Pool: "pool-1",
	    Size: 10 * 1024 * 1024 * 1024,
	    Thin: true,
	}
	spec := types.ReplicaSpecFromCreate(req)

Starting and committing a create through the transaction engine (see
pkg/specs) rather than constructing the spec directly:

	spec, err := engine.StartCreate(ctx, string(req.ID), req, types.ReplicaSpecFromCreate)
	// ... perform the gRPC side effect against the target node ...
	spec, err = engine.CompleteCreate(ctx, string(req.ID), sideEffectErr)

# State Machine

Every resource kind (except NodeSpec) follows the same coarse lifecycle:

	Creating → Created → Deleting → Deleted

A spec never transitions back to Created once it reaches Deleting or
Deleted. Runtime status (Online/Degraded/Faulted/Unknown) is only
meaningful while Lifecycle == Created. SpecStatus holds it in a Runtime
field beside Lifecycle: Creating() leaves it empty, but StartDestroy only
sets Lifecycle to Deleting, so a Deleting spec keeps its last Runtime
value.

# Design Patterns

Enumeration Pattern:

	All enums use typed string constants:
	  type Lifecycle string
	  const (
	      LifecycleCreating Lifecycle = "Creating"
	      LifecycleCreated  Lifecycle = "Created"
	  )

Operation Envelope Pattern:

	Every mutable spec embeds *OperationRecord[Op], where Op is the
	kind-specific operation type (e.g. ReplicaOperation). Result is nil
	while the operation is in flight, and non-nil once the external side
	effect has concluded but before the outcome has been durably
	committed — that gap is what the reconciler exists to close.

Owner Pattern:

	Replicas and nexuses record ownership by id reference (ReplicaOwners,
	NexusSpec.Owner), never by embedding the owning object, which is what
	keeps the volume/nexus/replica graph acyclic.

# Integration Points

This package integrates with:

  - pkg/kvstore: persists every spec as JSON under its Key()
  - pkg/specs: the generic transaction engine driving Start/Complete
  - pkg/registry: composition root holding one engine per kind
  - pkg/handlers: translates message-bus verbs into engine calls
  - pkg/reconciler: resolves specs left dirty by a crash
  - pkg/states: the observed-state cache reporting runtime status
  - pkg/rpc: the per-node gRPC client realizing a spec's side effects

# Thread Safety

Spec values themselves carry no internal locking; pkg/resourcemap
provides the per-id mutex that serializes mutations to a given spec.
A resource map's ToSlice and a Handle's Peek return the stored spec
pointers themselves, not copies: a later mutation through the engine
changes the value a caller already holds.

# See Also

  - pkg/specs for the transaction engine operating on these types
  - pkg/svcerr for the error taxonomy a failed operation surfaces as
*/
package types
