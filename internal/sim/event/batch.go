package event

import "github.com/go-gl/mathgl/mgl32"

// RawCollision is a collision as reported by the physics source.
type RawCollision struct {
	Location           mgl32.Vec3
	AccumulatedImpulse mgl32.Vec3
	Normal             mgl32.Vec3
	Velocity1          mgl32.Vec3
	Velocity2          mgl32.Vec3
	AngularVelocity1   mgl32.Vec3
	AngularVelocity2   mgl32.Vec3
	Mass1              float32
	Mass2              float32
	Proxy              int32
}

// RawBody is a breaking or trailing as reported by the physics source.
type RawBody struct {
	Location             mgl32.Vec3
	Velocity             mgl32.Vec3
	AngularVelocity      mgl32.Vec3
	Mass                 float32
	PhysicalMaterialName string
	Proxy                int32
}

// Batch is one tick's worth of raw events of a single kind. Only the slice
// matching Kind is read. Timestamp is the solver time at which the source
// built the batch.
type Batch struct {
	Kind       Kind
	Timestamp  float64
	Collisions []RawCollision
	Breakings  []RawBody
	Trailings  []RawBody
}

func (b Batch) Len() int {
	switch b.Kind {
	case KindCollision:
		return len(b.Collisions)
	case KindBreaking:
		return len(b.Breakings)
	case KindTrailing:
		return len(b.Trailings)
	}
	return 0
}

// Append adds the events of o that share b's kind and keeps the newer timestamp.
func (b *Batch) Append(o Batch) {
	if o.Kind != b.Kind {
		return
	}
	b.Collisions = append(b.Collisions, o.Collisions...)
	b.Breakings = append(b.Breakings, o.Breakings...)
	b.Trailings = append(b.Trailings, o.Trailings...)
	if o.Timestamp > b.Timestamp {
		b.Timestamp = o.Timestamp
	}
}
