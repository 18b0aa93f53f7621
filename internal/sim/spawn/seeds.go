package spawn

import "github.com/go-gl/mathgl/mgl32"

// Record is one seed with the passthrough fields of its source event.
type Record struct {
	Position mgl32.Vec3
	Velocity mgl32.Vec3
	SolverID int32

	IncomingLocation mgl32.Vec3
	Impulse          mgl32.Vec3
	Normal           mgl32.Vec3
	Velocity1        mgl32.Vec3
	Velocity2        mgl32.Vec3
	AngularVelocity1 mgl32.Vec3
	AngularVelocity2 mgl32.Vec3
	Mass1            float32
	Mass2            float32
	Time             float64

	ExtentMin   float32
	ExtentMax   float32
	Volume      float32
	Bounds      mgl32.Vec3
	SurfaceType int32
	Translation mgl32.Vec3
	Rotation    mgl32.Quat
	Scale       mgl32.Vec3

	Color       mgl32.Vec4
	Friction    float32
	Restitution float32
	Density     float32
}

// Seeds stores records as parallel per-field arrays, the layout the consumer
// uploads.
type Seeds struct {
	Position []mgl32.Vec3
	Velocity []mgl32.Vec3
	SolverID []int32

	IncomingLocation []mgl32.Vec3
	Impulse          []mgl32.Vec3
	Normal           []mgl32.Vec3
	Velocity1        []mgl32.Vec3
	Velocity2        []mgl32.Vec3
	AngularVelocity1 []mgl32.Vec3
	AngularVelocity2 []mgl32.Vec3
	Mass1            []float32
	Mass2            []float32
	Time             []float64

	ExtentMin   []float32
	ExtentMax   []float32
	Volume      []float32
	Bounds      []mgl32.Vec3
	SurfaceType []int32
	Translation []mgl32.Vec3
	Rotation    []mgl32.Quat
	Scale       []mgl32.Vec3

	Color       []mgl32.Vec4
	Friction    []float32
	Restitution []float32
	Density     []float32
}

func (s *Seeds) Len() int { return len(s.Position) }

func (s *Seeds) Append(r Record) {
	s.Position = append(s.Position, r.Position)
	s.Velocity = append(s.Velocity, r.Velocity)
	s.SolverID = append(s.SolverID, r.SolverID)
	s.IncomingLocation = append(s.IncomingLocation, r.IncomingLocation)
	s.Impulse = append(s.Impulse, r.Impulse)
	s.Normal = append(s.Normal, r.Normal)
	s.Velocity1 = append(s.Velocity1, r.Velocity1)
	s.Velocity2 = append(s.Velocity2, r.Velocity2)
	s.AngularVelocity1 = append(s.AngularVelocity1, r.AngularVelocity1)
	s.AngularVelocity2 = append(s.AngularVelocity2, r.AngularVelocity2)
	s.Mass1 = append(s.Mass1, r.Mass1)
	s.Mass2 = append(s.Mass2, r.Mass2)
	s.Time = append(s.Time, r.Time)
	s.ExtentMin = append(s.ExtentMin, r.ExtentMin)
	s.ExtentMax = append(s.ExtentMax, r.ExtentMax)
	s.Volume = append(s.Volume, r.Volume)
	s.Bounds = append(s.Bounds, r.Bounds)
	s.SurfaceType = append(s.SurfaceType, r.SurfaceType)
	s.Translation = append(s.Translation, r.Translation)
	s.Rotation = append(s.Rotation, r.Rotation)
	s.Scale = append(s.Scale, r.Scale)
	s.Color = append(s.Color, r.Color)
	s.Friction = append(s.Friction, r.Friction)
	s.Restitution = append(s.Restitution, r.Restitution)
	s.Density = append(s.Density, r.Density)
}

// At reassembles record i. Fields stored as absent read as zero.
func (s *Seeds) At(i int) Record {
	return Record{
		Position:         at(s.Position, i),
		Velocity:         at(s.Velocity, i),
		SolverID:         at(s.SolverID, i),
		IncomingLocation: at(s.IncomingLocation, i),
		Impulse:          at(s.Impulse, i),
		Normal:           at(s.Normal, i),
		Velocity1:        at(s.Velocity1, i),
		Velocity2:        at(s.Velocity2, i),
		AngularVelocity1: at(s.AngularVelocity1, i),
		AngularVelocity2: at(s.AngularVelocity2, i),
		Mass1:            at(s.Mass1, i),
		Mass2:            at(s.Mass2, i),
		Time:             at(s.Time, i),
		ExtentMin:        at(s.ExtentMin, i),
		ExtentMax:        at(s.ExtentMax, i),
		Volume:           at(s.Volume, i),
		Bounds:           at(s.Bounds, i),
		SurfaceType:      at(s.SurfaceType, i),
		Translation:      at(s.Translation, i),
		Rotation:         at(s.Rotation, i),
		Scale:            at(s.Scale, i),
		Color:            at(s.Color, i),
		Friction:         at(s.Friction, i),
		Restitution:      at(s.Restitution, i),
		Density:          at(s.Density, i),
	}
}

// Truncate drops records from n on, keeping capacity.
func (s *Seeds) Truncate(n int) {
	if n >= s.Len() {
		return
	}
	s.Position = s.Position[:n]
	s.Velocity = s.Velocity[:n]
	s.SolverID = s.SolverID[:n]
	s.IncomingLocation = s.IncomingLocation[:n]
	s.Impulse = s.Impulse[:n]
	s.Normal = s.Normal[:n]
	s.Velocity1 = s.Velocity1[:n]
	s.Velocity2 = s.Velocity2[:n]
	s.AngularVelocity1 = s.AngularVelocity1[:n]
	s.AngularVelocity2 = s.AngularVelocity2[:n]
	s.Mass1 = s.Mass1[:n]
	s.Mass2 = s.Mass2[:n]
	s.Time = s.Time[:n]
	s.ExtentMin = s.ExtentMin[:n]
	s.ExtentMax = s.ExtentMax[:n]
	s.Volume = s.Volume[:n]
	s.Bounds = s.Bounds[:n]
	s.SurfaceType = s.SurfaceType[:n]
	s.Translation = s.Translation[:n]
	s.Rotation = s.Rotation[:n]
	s.Scale = s.Scale[:n]
	s.Color = s.Color[:n]
	s.Friction = s.Friction[:n]
	s.Restitution = s.Restitution[:n]
	s.Density = s.Density[:n]
}

// Take moves the arrays out of s and leaves s empty. Empty arrays come back
// as nil.
func (s *Seeds) Take() Seeds {
	out := Seeds{
		Position:         nilIfEmpty(s.Position),
		Velocity:         nilIfEmpty(s.Velocity),
		SolverID:         nilIfEmpty(s.SolverID),
		IncomingLocation: nilIfEmpty(s.IncomingLocation),
		Impulse:          nilIfEmpty(s.Impulse),
		Normal:           nilIfEmpty(s.Normal),
		Velocity1:        nilIfEmpty(s.Velocity1),
		Velocity2:        nilIfEmpty(s.Velocity2),
		AngularVelocity1: nilIfEmpty(s.AngularVelocity1),
		AngularVelocity2: nilIfEmpty(s.AngularVelocity2),
		Mass1:            nilIfEmpty(s.Mass1),
		Mass2:            nilIfEmpty(s.Mass2),
		Time:             nilIfEmpty(s.Time),
		ExtentMin:        nilIfEmpty(s.ExtentMin),
		ExtentMax:        nilIfEmpty(s.ExtentMax),
		Volume:           nilIfEmpty(s.Volume),
		Bounds:           nilIfEmpty(s.Bounds),
		SurfaceType:      nilIfEmpty(s.SurfaceType),
		Translation:      nilIfEmpty(s.Translation),
		Rotation:         nilIfEmpty(s.Rotation),
		Scale:            nilIfEmpty(s.Scale),
		Color:            nilIfEmpty(s.Color),
		Friction:         nilIfEmpty(s.Friction),
		Restitution:      nilIfEmpty(s.Restitution),
		Density:          nilIfEmpty(s.Density),
	}
	*s = Seeds{}
	return out
}

func at[T any](s []T, i int) T {
	var zero T
	if i < 0 || i >= len(s) {
		return zero
	}
	return s[i]
}

func nilIfEmpty[T any](s []T) []T {
	if len(s) == 0 {
		return nil
	}
	return s
}
