package event

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type Kind uint8

const (
	KindCollision Kind = iota
	KindBreaking
	KindTrailing
)

func (k Kind) String() string {
	switch k {
	case KindCollision:
		return "collision"
	case KindBreaking:
		return "breaking"
	case KindTrailing:
		return "trailing"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "collision", "":
		return KindCollision, nil
	case "breaking":
		return KindBreaking, nil
	case "trailing":
		return KindTrailing, nil
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// NoProxy marks an event without a scene object handle.
const NoProxy int32 = -1

// Fixed geometry used when extended lookup is off.
const (
	DefaultExtent      float32 = 100
	DefaultVolume      float32 = 1e6
	DefaultSurfaceType int32   = 0
)

type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3
}

func IdentityTransform() Transform {
	return Transform{
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

type Geometry struct {
	ExtentMin   float32
	ExtentMax   float32
	Volume      float32
	Bounds      mgl32.Vec3
	SurfaceType int32
	Transform   Transform
}

func DefaultGeometry() Geometry {
	return Geometry{
		ExtentMin:   DefaultExtent,
		ExtentMax:   DefaultExtent,
		Volume:      DefaultVolume,
		Bounds:      mgl32.Vec3{DefaultExtent, DefaultExtent, DefaultExtent},
		SurfaceType: DefaultSurfaceType,
		Transform:   IdentityTransform(),
	}
}

// Collision is the payload of a KindCollision event.
type Collision struct {
	AccumulatedImpulse mgl32.Vec3
	Normal             mgl32.Vec3
	Velocity1          mgl32.Vec3
	Velocity2          mgl32.Vec3
	AngularVelocity1   mgl32.Vec3
	AngularVelocity2   mgl32.Vec3
	Mass1              float32
	Mass2              float32
}

// Body is the payload of KindBreaking and KindTrailing events.
type Body struct {
	Velocity             mgl32.Vec3
	AngularVelocity      mgl32.Vec3
	Mass                 float32
	PhysicalMaterialName string
}

// Event is one normalized destruction event. Exactly one of Collision or Body
// is meaningful, selected by Kind; the other stays zero.
type Event struct {
	Kind      Kind
	Location  mgl32.Vec3
	Proxy     int32
	Collision Collision
	Body      Body
	Geometry  Geometry
}

// VelocityDelta is the velocity inherited by spawned seeds.
func (e *Event) VelocityDelta() mgl32.Vec3 {
	if e.Kind == KindCollision {
		return e.Collision.Velocity1.Sub(e.Collision.Velocity2)
	}
	return e.Body.Velocity
}

func (e *Event) Speed() float32 {
	if e.Kind == KindCollision {
		return e.Collision.Velocity1.Len()
	}
	return e.Body.Velocity.Len()
}

// Mass is the sort and filter key. Collisions use the larger of the two masses.
func (e *Event) Mass() float32 {
	if e.Kind == KindCollision {
		if e.Collision.Mass2 > e.Collision.Mass1 {
			return e.Collision.Mass2
		}
		return e.Collision.Mass1
	}
	return e.Body.Mass
}

// Impulse is zero for anything but collisions.
func (e *Event) Impulse() float32 {
	if e.Kind != KindCollision {
		return 0
	}
	return e.Collision.AccumulatedImpulse.Len()
}

func (e *Event) Normal() mgl32.Vec3 {
	if e.Kind != KindCollision {
		return mgl32.Vec3{}
	}
	return e.Collision.Normal
}

// MaterialName is empty for collisions.
func (e *Event) MaterialName() string {
	if e.Kind == KindCollision {
		return ""
	}
	return e.Body.PhysicalMaterialName
}
