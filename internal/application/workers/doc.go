// Package workers implements the worker pool that executes dispatched
// graph nodes.
//
// The pool manages a fixed number of goroutines draining a shared job
// queue. The scheduler submits one job per node attempt, so the pool is
// what bounds node-level parallelism across all active runs.
//
// The health monitor tracks worker status and reports pool gauges.
package workers
