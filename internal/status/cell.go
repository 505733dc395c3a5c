// Package status holds the shared status cell published by the leader and
// support loops, and exposes it over the HTTP endpoint an external
// supervisor polls to decide which replica, if any, needs restarting.
package status

import (
	"sync/atomic"

	"laminar/internal/metrics"
	"laminar/internal/model"
)

// Cell is the atomic, concurrently-read-and-written state the loops publish
// and the HTTP server reads. All access uses strong ordering: this is
// polled at human timescales, not a hot path.
type Cell struct {
	nextFetchFromSeqnum atomic.Uint64
	isLeader            atomic.Bool
}

// NewCell builds a cell seeded with the node's initial fetch cursor and
// role.
func NewCell(initialSeqnum model.SeqNum, isLeader bool) *Cell {
	c := &Cell{}
	c.nextFetchFromSeqnum.Store(uint64(initialSeqnum))
	c.isLeader.Store(isLeader)
	c.publishMetrics()
	return c
}

// NextFetchFromSeqnum returns the current published cursor.
func (c *Cell) NextFetchFromSeqnum() model.SeqNum {
	return model.SeqNum(c.nextFetchFromSeqnum.Load())
}

// SetNextFetchFromSeqnum publishes a new cursor. The leader/support loops
// are expected to only ever move this forward.
func (c *Cell) SetNextFetchFromSeqnum(seqnum model.SeqNum) {
	c.nextFetchFromSeqnum.Store(uint64(seqnum))
	metrics.NextFetchSeqnum.Set(float64(seqnum))
}

// IsLeader reports whether this node currently believes it is the leader.
func (c *Cell) IsLeader() bool {
	return c.isLeader.Load()
}

// SetIsLeader publishes this node's role. Promotion calls this exactly once,
// from false to true; it is never called back to false.
func (c *Cell) SetIsLeader(leader bool) {
	c.isLeader.Store(leader)
	if leader {
		metrics.IsLeader.Set(1)
	} else {
		metrics.IsLeader.Set(0)
	}
}

func (c *Cell) publishMetrics() {
	metrics.NextFetchSeqnum.Set(float64(c.nextFetchFromSeqnum.Load()))
	if c.isLeader.Load() {
		metrics.IsLeader.Set(1)
	} else {
		metrics.IsLeader.Set(0)
	}
}
