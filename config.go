package oms

import "time"

const (
	// DefaultAutoCommitInterval is the background flush period when
	// PoolOptions does not override it.
	DefaultAutoCommitInterval = time.Second
	// DefaultMaxFlushParallelism caps concurrent session commits in
	// FlushAllWait when PoolOptions does not override it.
	DefaultMaxFlushParallelism = 4
)

// PoolOptions holds the configuration for a SessionPool.
type PoolOptions struct {
	// DefaultPartition is the partition new sessions create objects in.
	DefaultPartition int `json:"default_partition"`
	// AutoCommitInterval is the background flush period. Zero selects
	// DefaultAutoCommitInterval.
	AutoCommitInterval time.Duration `json:"auto_commit_interval"`
	// DisableAutoCommit turns the background flush loop off; Schedule becomes
	// a no-op and commits only happen when the caller asks for them.
	DisableAutoCommit bool `json:"disable_auto_commit"`
	// MaxFlushParallelism caps concurrent session commits during
	// FlushAllWait. Zero selects DefaultMaxFlushParallelism.
	MaxFlushParallelism int `json:"max_flush_parallelism"`
	// Session carries the per-session policy applied to every session the
	// pool creates.
	Session SessionOptions `json:"session"`
}

func (o PoolOptions) autoCommitInterval() time.Duration {
	if o.AutoCommitInterval <= 0 {
		return DefaultAutoCommitInterval
	}
	return o.AutoCommitInterval
}

func (o PoolOptions) maxFlushParallelism() int {
	if o.MaxFlushParallelism <= 0 {
		return DefaultMaxFlushParallelism
	}
	return o.MaxFlushParallelism
}
