// Package scheduler implements the run coordinator: the control loop that
// drives a graph's nodes from pending to terminal status.
//
// The coordinator is a single goroutine per run. It computes the ready set
// from the graph and the run state, evaluates skip conditions, dispatches
// ready nodes onto the worker pool, applies retry policy to failures, and
// checkpoints the run state after every terminal node transition. Node
// results come back over a channel, so the coordinator is the only writer
// of per-node state; retry delays are timer-scheduled and never block
// dispatch of unrelated nodes.
package scheduler
