// Package queue implements a durable job queue on Redis.
//
// Jobs move between five sorted sets: waiting (ordered by priority, then
// insertion), active (ordered by lease deadline), delayed (ordered by the
// time they become runnable), completed and failed. State transitions run
// as Lua scripts so concurrent workers in any number of processes never
// claim the same job twice.
//
// Jobs are domain.Job values. They are validated when added and decoded
// again when dequeued; a job that no longer decodes is failed without
// retry. Failed jobs are retried according to a RetryPolicy, and finished
// jobs are trimmed to configurable retention caps.
package queue
