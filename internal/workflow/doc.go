// Package workflow runs render jobs on a fixed-size worker pool.
//
// The Manager claims Pending jobs from the queue store, hands them to the
// configured stage handler, and records the outcome. Each running job keeps a
// heartbeat lease; a reclaim loop fails Processing jobs whose lease expired,
// and Start fails jobs a previous daemon process left behind. Handler errors
// and panics are converted into a single Fail transition at the worker
// boundary and are never retried.
//
// Jobs reach workers two ways: local workers poll the store (woken early by
// Notify), or an external dispatcher calls Execute with a job id. Either way
// exclusivity comes from queue.Store.Assign.
package workflow
