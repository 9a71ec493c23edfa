// Package cache provides a bounded, time-expiring, concurrency-safe cache.
//
// A Cache holds at most Capacity entries. Reads and writes move an entry to
// the most-recently-used position, and inserting past capacity evicts the
// least-recently-used entry synchronously. A background sweeper removes
// entries older than TimeToLive every SweepInterval. Expiry is eventual: an
// entry past its TTL keeps being served until the next sweep runs.
//
// All operations, including the sweep, serialize on a single mutex. The
// cache knows nothing about what it stores; callers derive keys and build
// values.
package cache
