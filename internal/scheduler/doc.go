// Package scheduler dispatches the periodic suggestion work. A daily cron
// run enqueues a cleanup job and one generate job per user; a weekly run
// enqueues a deeper cleanup. Only one run executes at a time across all
// processes, guarded by a Redis lease.
package scheduler
