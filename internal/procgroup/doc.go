// Package procgroup puts the dispatcher and every child it starts into one
// process group so that cancellation can stop all of them with a single
// signal.
//
// Setup must run before the first child is started. Kill is the only
// cancellation path: it sends SIGKILL to the whole group, the dispatcher
// included, so no orphaned benchmark or profiler survives an interrupt.
package procgroup
