package types

import "errors"

// Sentinel errors returned by the per-kind StartUpdateOp implementations.
// pkg/specs wraps these into the proper svcerr kind before they reach a
// caller; they exist here, rather than in pkg/svcerr, so this package has no
// dependency on the error-taxonomy package.
var (
	errNotShared     = errors.New("resource is not shared")
	errAlreadyShared = errors.New("resource already shared with requested protocol")
	errChildExists      = errors.New("nexus child already present")
	errChildNotFound    = errors.New("nexus child not found")
	errNotPublished     = errors.New("volume is not published")
	errAlreadyPublished = errors.New("volume is already published")
)

// ErrNotShared reports whether err is the not-shared sentinel.
func ErrNotShared(err error) bool { return errors.Is(err, errNotShared) }

// ErrAlreadyShared reports whether err is the already-shared sentinel.
func ErrAlreadyShared(err error) bool { return errors.Is(err, errAlreadyShared) }

// ErrChildExists reports whether err is the duplicate-child sentinel.
func ErrChildExists(err error) bool { return errors.Is(err, errChildExists) }

// ErrChildNotFound reports whether err is the child-not-found sentinel.
func ErrChildNotFound(err error) bool { return errors.Is(err, errChildNotFound) }

// ErrNotPublished reports whether err is the not-published sentinel.
func ErrNotPublished(err error) bool { return errors.Is(err, errNotPublished) }

// ErrAlreadyPublished reports whether err is the already-published sentinel.
func ErrAlreadyPublished(err error) bool { return errors.Is(err, errAlreadyPublished) }
