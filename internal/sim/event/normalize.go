package event

import (
	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/stats"
)

// Material holds the physical parameters a seed inherits from its source.
type Material struct {
	Friction    float32
	Restitution float32
	Density     float32
	// Colors are candidate tints; one is picked per seed.
	Colors []mgl32.Vec4
}

const (
	DefaultFriction    float32 = 0.7
	DefaultRestitution float32 = 0.3
	DefaultDensity     float32 = 1
)

var DefaultColor = mgl32.Vec4{1, 1, 1, 1}

func DefaultMaterial() Material {
	return Material{
		Friction:    DefaultFriction,
		Restitution: DefaultRestitution,
		Density:     DefaultDensity,
		Colors:      []mgl32.Vec4{DefaultColor},
	}
}

// Lookup resolves scene data the physics source does not carry. Both methods
// report false when nothing is known and the caller falls back to defaults.
type Lookup interface {
	Geometry(proxy int32) (Geometry, bool)
	Material(proxy int32, name string) (Material, bool)
}

// Normalizer turns raw batches into tagged events. The returned slice is owned
// by the Normalizer and is overwritten by the next call.
type Normalizer struct {
	ExtendedLookup bool
	Lookup         Lookup
	Stats          stats.Observer

	buf []Event
}

func (n *Normalizer) Normalize(b Batch) []Event {
	n.buf = n.buf[:0]
	switch b.Kind {
	case KindCollision:
		for i := range b.Collisions {
			r := &b.Collisions[i]
			n.buf = append(n.buf, Event{
				Kind:     KindCollision,
				Location: r.Location,
				Proxy:    r.Proxy,
				Collision: Collision{
					AccumulatedImpulse: r.AccumulatedImpulse,
					Normal:             r.Normal,
					Velocity1:          r.Velocity1,
					Velocity2:          r.Velocity2,
					AngularVelocity1:   r.AngularVelocity1,
					AngularVelocity2:   r.AngularVelocity2,
					Mass1:              r.Mass1,
					Mass2:              r.Mass2,
				},
				Geometry: n.geometry(r.Proxy),
			})
		}
	case KindBreaking, KindTrailing:
		raw := b.Breakings
		if b.Kind == KindTrailing {
			raw = b.Trailings
		}
		for i := range raw {
			r := &raw[i]
			n.buf = append(n.buf, Event{
				Kind:     b.Kind,
				Location: r.Location,
				Proxy:    r.Proxy,
				Body: Body{
					Velocity:             r.Velocity,
					AngularVelocity:      r.AngularVelocity,
					Mass:                 r.Mass,
					PhysicalMaterialName: r.PhysicalMaterialName,
				},
				Geometry: n.geometry(r.Proxy),
			})
		}
	}
	if n.Stats != nil && len(n.buf) > 0 {
		n.Stats.OnCounter(stats.EventsTotal, int64(len(n.buf)))
	}
	return n.buf
}

func (n *Normalizer) geometry(proxy int32) Geometry {
	if n.ExtendedLookup && n.Lookup != nil && proxy != NoProxy {
		if g, ok := n.Lookup.Geometry(proxy); ok {
			return g
		}
	}
	return DefaultGeometry()
}
