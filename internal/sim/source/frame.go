package source

import "debrisfx/internal/sim/event"

// Frame is one solver step: the solver time and the raw events the solver
// reported for it.
type Frame struct {
	Index      uint64
	SolverTime float64
	// Enabled is a bit set of event kinds the solver reports, 1<<kind.
	Enabled    uint8
	Collisions []event.RawCollision
	Breakings  []event.RawBody
	Trailings  []event.RawBody
}

func KindMask(kinds ...event.Kind) uint8 {
	var m uint8
	for _, k := range kinds {
		m |= 1 << k
	}
	return m
}

// AllKinds enables every event kind.
var AllKinds = KindMask(event.KindCollision, event.KindBreaking, event.KindTrailing)

func (f *Frame) KindEnabled(k event.Kind) bool { return f.Enabled&(1<<k) != 0 }

// Batch returns the frame's events of kind k stamped with the frame's solver
// time. The slices are shared with the frame.
func (f *Frame) Batch(k event.Kind) event.Batch {
	b := event.Batch{Kind: k, Timestamp: f.SolverTime}
	switch k {
	case event.KindCollision:
		b.Collisions = f.Collisions
	case event.KindBreaking:
		b.Breakings = f.Breakings
	case event.KindTrailing:
		b.Trailings = f.Trailings
	}
	return b
}

func (f *Frame) Len() int { return len(f.Collisions) + len(f.Breakings) + len(f.Trailings) }
