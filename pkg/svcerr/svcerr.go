// Package svcerr defines the error taxonomy returned by the core agent to
// its callers: a small closed set of kinds, each carrying the resource kind
// and id it relates to, so a caller (bus handler, REST gateway, CLI) can map
// it to its own wire representation without string matching.
package svcerr

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is the closed set of reply error kinds a request can fail with.
type Kind string

const (
	KindNotFound           Kind = "NotFound"
	KindAlreadyExists      Kind = "AlreadyExists"
	KindInvalidArgument    Kind = "InvalidArgument"
	KindFailedPrecondition Kind = "FailedPrecondition"
	KindConflict           Kind = "Conflict"
	KindDeleting           Kind = "Deleting"
	KindNotShared          Kind = "NotShared"
	KindAlreadyShared      Kind = "AlreadyShared"
	KindNotPublished       Kind = "NotPublished"
	KindAlreadyPublished   Kind = "AlreadyPublished"
	KindInUse              Kind = "InUse"
	KindNotReady           Kind = "NotReady"
	KindStoreSave          Kind = "StoreSave"
	KindResourceExhausted  Kind = "ResourceExhausted"
	KindTimeout            Kind = "Timeout"
	KindDeadlineExceeded   Kind = "DeadlineExceeded"
	KindPermissionDenied   Kind = "PermissionDenied"
	KindUnauthenticated    Kind = "Unauthenticated"
	KindAborted            Kind = "Aborted"
	KindOutOfRange         Kind = "OutOfRange"
	KindUnimplemented      Kind = "Unimplemented"
	KindUnavailable        Kind = "Unavailable"
	KindInternal           Kind = "Internal"
)

// Resource names the kind of domain object an Error concerns, used only for
// presentation — the dispatch logic keys off Kind, not Resource.
type Resource string

const (
	ResourceNode    Resource = "Node"
	ResourcePool    Resource = "Pool"
	ResourceReplica Resource = "Replica"
	ResourceNexus   Resource = "Nexus"
	ResourceChild   Resource = "Child"
	ResourceVolume  Resource = "Volume"
	ResourceWatch   Resource = "Watch"
	ResourceUnknown Resource = "Unknown"
)

// Error is the error type every core-agent operation returns on failure.
type Error struct {
	Kind     Kind
	Resource Resource
	ID       string
	Msg      string
	Err      error
}

func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %q: %s", e.Kind, e.Resource, e.ID, e.Msg)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Resource, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, resource Resource, id, msg string, err error) *Error {
	return &Error{Kind: kind, Resource: resource, ID: id, Msg: msg, Err: err}
}

// NotFound reports that a resource with the given id does not exist.
func NotFound(resource Resource, id string) *Error {
	return newErr(KindNotFound, resource, id, fmt.Sprintf("%s %q not found", resource, id), nil)
}

// AlreadyExists reports a create request whose id collides with an
// unrelated existing spec.
func AlreadyExists(resource Resource, id string) *Error {
	return newErr(KindAlreadyExists, resource, id, fmt.Sprintf("%s %q already exists", resource, id), nil)
}

// ReCreateMismatch reports a create retry that targets the same id as a
// spec still being created, but with different parameters.
func ReCreateMismatch(resource Resource, id string) *Error {
	return newErr(KindConflict, resource, id,
		fmt.Sprintf("retried creation of %s %q with different parameters", resource, id), nil)
}

// PendingCreation reports that the spec exists but has not finished being
// created yet.
func PendingCreation(resource Resource, id string) *Error {
	return newErr(KindFailedPrecondition, resource, id, fmt.Sprintf("%s %q is still being created", resource, id), nil)
}

// Deleting reports a create attempted against a spec already in the
// Deleting or Deleted lifecycle state.
func Deleting(resource Resource, id string) *Error {
	return newErr(KindDeleting, resource, id, "pending deletion, please retry", nil)
}

// PendingDeletion reports an update attempted against a spec already in the
// Deleting or Deleted lifecycle state.
func PendingDeletion(resource Resource, id string) *Error {
	return newErr(KindFailedPrecondition, resource, id, fmt.Sprintf("%s %q is being deleted", resource, id), nil)
}

// PendingReconcile reports a mutation attempted against a spec whose prior
// operation concluded but has not yet been durably persisted (dirty); the
// caller must retry once the reconciler catches up.
func PendingReconcile(resource Resource, id string) *Error {
	return newErr(KindStoreSave, resource, id, "resource has a pending unreconciled operation, please retry", nil)
}

// Conflict reports a mutation attempted while another operation is already
// in flight against the same spec.
func Conflict(resource Resource, id string) *Error {
	return newErr(KindConflict, resource, id, "conflicts with existing operation, please retry", nil)
}

// NotReady reports an update issued while the spec and its last observed
// status disagree (StatusSynced is false); a dirty spec is reported by
// PendingReconcile instead.
func NotReady(resource Resource, id string) *Error {
	return newErr(KindNotReady, resource, id, "resource needs to be reconciled, please retry", nil)
}

// InUse reports a destroy attempted against a spec still referenced by an
// owner (e.g. a replica still owned by a volume or nexus).
func InUse(resource Resource, id string) *Error {
	return newErr(KindInUse, resource, id, "resource still in use", nil)
}

// NotShared reports an unshare attempted against a spec whose protocol is
// already Off.
func NotShared(resource Resource, id string) *Error {
	return newErr(KindNotShared, resource, id, "resource is not shared", nil)
}

// AlreadyShared reports a share attempted with the protocol already active.
func AlreadyShared(resource Resource, id string) *Error {
	return newErr(KindAlreadyShared, resource, id, "resource is already shared", nil)
}

// NotPublished reports an unpublish attempted against a volume with no
// publishing nexus.
func NotPublished(id string) *Error {
	return newErr(KindNotPublished, ResourceVolume, id, "volume is not published", nil)
}

// AlreadyPublished reports a publish attempted against a volume that
// already has a publishing nexus.
func AlreadyPublished(id string) *Error {
	return newErr(KindAlreadyPublished, ResourceVolume, id, "volume is already published", nil)
}

// ChildNotFound reports RemoveNexusChild against a URI the nexus does not
// have.
func ChildNotFound(nexusID, child string) *Error {
	return newErr(KindNotFound, ResourceChild, child, fmt.Sprintf("child %q not found in nexus %q", child, nexusID), nil)
}

// ChildAlreadyExists reports AddNexusChild against a URI already present.
func ChildAlreadyExists(nexusID, child string) *Error {
	return newErr(KindAlreadyExists, ResourceChild, child, fmt.Sprintf("child %q already exists in nexus %q", child, nexusID), nil)
}

// InvalidFilter reports a Filter combination the list verb cannot express.
func InvalidFilter(detail string) *Error {
	return newErr(KindInvalidArgument, ResourceUnknown, "", "invalid filter: "+detail, nil)
}

// InvalidArgument wraps a request validation failure unrelated to a
// specific existing resource.
func InvalidArgument(msg string) *Error {
	return newErr(KindInvalidArgument, ResourceUnknown, "", msg, nil)
}

// NotEnoughResources reports that placement could not satisfy a volume's
// requirements (not enough online pools, or not enough capacity).
func NotEnoughResources(msg string) *Error {
	return newErr(KindResourceExhausted, ResourceUnknown, "", msg, nil)
}

// NodeNotOnline reports an attempt to place work on a node whose last
// observed liveness state is not Online.
func NodeNotOnline(nodeID string) *Error {
	return newErr(KindFailedPrecondition, ResourceNode, nodeID, fmt.Sprintf("node %q is not online", nodeID), nil)
}

// StoreSave reports a spec mutation whose write to the store failed. When
// raised by a Complete* call the spec is left dirty for the reconciler;
// when raised by a Start* call the pending operation is cleared instead.
func StoreSave(resource Resource, id string, err error) *Error {
	return newErr(KindStoreSave, resource, id, "failed to persist to store", err)
}

// Store wraps an arbitrary store-layer failure not specific to one write.
func Store(err error) *Error {
	return newErr(KindInternal, ResourceUnknown, "", "store error", err)
}

// Internal wraps a broken invariant; reaching this is always a bug.
func Internal(msg string) *Error {
	return newErr(KindInternal, ResourceUnknown, "", msg, nil)
}

// GrpcConnectTimeout reports that dialing a node's gRPC endpoint exceeded
// the configured connect timeout.
func GrpcConnectTimeout(nodeID, endpoint string) *Error {
	return newErr(KindTimeout, ResourceNode, nodeID,
		fmt.Sprintf("timed out connecting to node %q via gRPC endpoint %q", nodeID, endpoint), nil)
}

// GrpcConnect wraps a transport-level dial failure.
func GrpcConnect(nodeID string, err error) *Error {
	return newErr(KindInternal, ResourceNode, nodeID, "failed to connect to node via gRPC", err)
}

// GrpcRequest maps a gRPC status error returned by a data-plane call into
// the reply kind the original status code implies.
func GrpcRequest(resource Resource, id string, err error) *Error {
	return newErr(grpcCodeKind(err), resource, id, "gRPC request failed", err)
}

// grpcCodeKind implements the one gRPC-status-code -> reply-kind table the
// engine applies uniformly to every data-plane call.
func grpcCodeKind(err error) Kind {
	switch codeFromError(err) {
	case codes.InvalidArgument:
		return KindInvalidArgument
	case codes.DeadlineExceeded:
		return KindDeadlineExceeded
	case codes.NotFound:
		return KindNotFound
	case codes.AlreadyExists:
		return KindAlreadyExists
	case codes.PermissionDenied:
		return KindPermissionDenied
	case codes.ResourceExhausted:
		return KindResourceExhausted
	case codes.FailedPrecondition:
		return KindFailedPrecondition
	case codes.Aborted:
		return KindAborted
	case codes.OutOfRange:
		return KindOutOfRange
	case codes.Unimplemented:
		return KindUnimplemented
	case codes.Unavailable:
		return KindUnavailable
	case codes.Unauthenticated:
		return KindUnauthenticated
	// Cancelled, Unknown, Internal, DataLoss and any unrecognised code all
	// collapse to Internal: none of them name something the caller can act
	// on differently.
	default:
		return KindInternal
	}
}

// codeFromError extracts the gRPC status code from err, defaulting to
// Unknown for an error that did not originate as a gRPC status (which still
// maps to Internal above).
func codeFromError(err error) codes.Code {
	st, ok := status.FromError(err)
	if !ok {
		return codes.Unknown
	}
	return st.Code()
}

// As reports whether err is an *Error, unwrapping through any wrapping
// chain, and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
