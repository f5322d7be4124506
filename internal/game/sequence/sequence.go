package sequence

import (
	"sync/atomic"
)

// ID identifies a player, zone, object or ability within a game.
// IDs are process-unique for a given Counters and are never reused.
type ID uint64

// Timestamp orders zone-entry events. Larger values entered later.
type Timestamp uint64

// None is the zero ID. Counters never issue it, so it marks an absent reference.
const None ID = 0

// Counter is a monotonically increasing value safe for concurrent use.
type Counter struct {
	last atomic.Uint64
}

// Next increments the counter and returns the new value. The first call returns 1.
func (c *Counter) Next() uint64 {
	return c.last.Add(1)
}

// Last returns the most recently issued value, or 0 if none was issued.
func (c *Counter) Last() uint64 {
	return c.last.Load()
}

// Counters bundles the two independent generators a game draws from: one for
// identities and one for zone-entry timestamps.
//
// A single Counters may be shared by many games running in parallel; games that
// share it never collide on identities.
type Counters struct {
	ids        Counter
	timestamps Counter
}

// NewCounters creates a fresh pair of generators starting at zero.
func NewCounters() *Counters {
	return &Counters{}
}

// NextID returns a new, never before issued identity.
func (c *Counters) NextID() ID {
	return ID(c.ids.Next())
}

// NextTimestamp returns a new timestamp strictly greater than all previous ones.
func (c *Counters) NextTimestamp() Timestamp {
	return Timestamp(c.timestamps.Next())
}
