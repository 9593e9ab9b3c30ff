// Package reconciler implements the Dirty-Spec Reconciler: a background
// loop that scans the Replica, Nexus and Pool spec engines for any spec whose
// write-ahead log recorded a side-effect outcome that never made it into
// the last durably-written copy of that spec (Dirty()), and replays the
// matching CompleteCreate/CompleteUpdate/CompleteDestroy call until the
// store agrees with the outcome.
//
// A spec goes dirty when the agent crashes, or the store briefly refuses a
// write, between a data-plane gRPC call concluding and the resulting state
// commit landing in the store. Without this loop such a spec stays stuck in
// Creating/Deleting (or mid-update) forever even though the data plane has
// already finished the operation.
//
// The loop alternates between two sleep intervals: after a pass that
// resolved at least one dirty spec it sleeps Timing.ReconcilePeriod (short,
// to keep draining a backlog), and after a pass that found nothing it
// sleeps Timing.ReconcileIdlePeriod (longer, since an idle cluster has
// nothing left to converge).
package reconciler
