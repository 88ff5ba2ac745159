// Package sched fans point evaluations out over a pool of exclusively
// leased evaluators.
//
// A batch is keyed, checked against the result cache and deduplicated
// before any native work. Unique misses flow through a bounded queue to
// workers; each worker leases one evaluator for the whole batch and never
// shares it. Results land in the slot they came from, so output order is
// input order regardless of completion order.
//
// # Failure Policy
//
// AbortOnFirst cancels the batch on the first failing point and returns a
// kernel.BatchAbortedError. BestEffort finishes every point and records
// failures per slot in Batch.Status.
//
// # Timeouts
//
// A batch timeout abandons the wait, not the native calls. Calls already
// running finish in the background and hand their evaluator back to the
// pool afterwards.
package sched
