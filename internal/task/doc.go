// Package task executes queued jobs. Processor turns each kind of job into
// work against the analyzer, the recommendation generator and the
// suggestion store. Runner pulls jobs from the durable queue and feeds them
// to a Processor from a pool of workers, recovering jobs whose worker died.
package task
