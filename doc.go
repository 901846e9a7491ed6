// Package oms manages the in-memory lifecycle of persistent, remotely backed
// objects. It tracks per-field state, lazily loads missing state through the
// Store contract, marks modified fields dirty, and batches dirty state into
// atomic per-object write-backs. Sessions group object handles under one commit
// boundary, and SessionPool binds sessions to caller-supplied context keys with
// a background auto-commit loop that flushes outstanding changes.
//
// Concrete store backends live in subpackages: in_memory (tests and
// single-process use), redis, cassandra, and bolt. The wire transport, RPC dispatch, and the storage
// engines themselves are outside this package; they are consumed through the
// Store and IDGenerator contracts only.
//
// Concurrency model
//
// A Handle is owned by one logical caller at a time; it is not safe for
// concurrent mutation from multiple goroutines without external
// synchronization. The SessionPool's session registry and pending-commit set
// are safe for concurrent use from arbitrary goroutines and from the
// background flush loop.
package oms
