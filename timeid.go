package oms

import "sync"

// Time-sorted ID layout: 42 bits of milliseconds since the custom epoch,
// 10 bits of node ID, 12 bits of per-millisecond sequence. IDs generated by
// one node are strictly increasing; across nodes they are unique and roughly
// time-ordered, which is all the engine requires of object IDs.
const (
	timeIDEpochMillis = int64(1577836800000) // 2020-01-01T00:00:00Z
	timeIDNodeBits    = 10
	timeIDSeqBits     = 12
	timeIDMaxNode     = (1 << timeIDNodeBits) - 1
	timeIDMaxSeq      = (1 << timeIDSeqBits) - 1
)

// TimeIDGenerator is the default IDGenerator: it produces 64-bit, time-ordered,
// monotonically increasing object IDs. Safe for concurrent use.
type TimeIDGenerator struct {
	mu       sync.Mutex
	node     int64
	lastTime int64
	sequence int64
}

// NewTimeIDGenerator creates a generator for the given node ID (0..1023).
// Node IDs must be distinct across processes that share one store partition,
// otherwise ID uniqueness is not guaranteed.
func NewTimeIDGenerator(node int) *TimeIDGenerator {
	if node < 0 || node > timeIDMaxNode {
		panic("node ID out of range")
	}
	return &TimeIDGenerator{node: int64(node)}
}

// NewID returns the next time-ordered ID. When the per-millisecond sequence
// overflows, or when the wall clock runs backwards, generation holds at the
// last observed millisecond until real time catches up.
func (g *TimeIDGenerator) NewID() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := Now().UnixMilli() - timeIDEpochMillis
	if now < g.lastTime {
		// Clock regression: keep issuing from the last millisecond.
		now = g.lastTime
	}
	if now == g.lastTime {
		g.sequence++
		if g.sequence > timeIDMaxSeq {
			// Sequence exhausted for this millisecond; spin to the next one.
			for now <= g.lastTime {
				now = Now().UnixMilli() - timeIDEpochMillis
			}
			g.sequence = 0
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return now<<(timeIDNodeBits+timeIDSeqBits) | g.node<<timeIDSeqBits | g.sequence
}
