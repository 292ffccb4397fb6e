// Package interest aggregates parameter demand from independent consumers.
//
// Each UI surface owns a Token for its lifetime and declares the parameter
// set it currently cares about with Replace. The registry folds all live
// tokens' sets into one union, the interested set, and republishes it to
// observers only when it actually changes, so downstream subscription
// restarts never fire redundantly.
//
// Replace mutates synchronously in the caller's step. Clear is deliberately
// deferred: it is queued onto the registry's single worker and applied on
// the next turn, because clear is typically invoked from UI teardown paths
// that may run reentrant to other registry mutation.
//
// The union is always recomputed from scratch, never patched incrementally,
// so a token's removal can never leave stale entries behind.
package interest
