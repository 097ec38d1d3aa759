// Package redis connects to Redis and provides the distributed lease lock
// that keeps scheduled dispatch runs from overlapping across processes.
package redis
