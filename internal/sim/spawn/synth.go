package spawn

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/stats"
)

// Synthesizer turns selected events into seeds. It owns its random stream and
// must only be used from one goroutine.
type Synthesizer struct {
	rng    *rand.Rand
	lookup event.Lookup
	stats  stats.Observer
}

func NewSynthesizer(rng *rand.Rand, lookup event.Lookup, obs stats.Observer) *Synthesizer {
	return &Synthesizer{rng: rng, lookup: lookup, stats: stats.OrNop(obs)}
}

// Synthesize appends seeds for events to dst and returns how many were added.
// Events whose batch is older than cfg.MaxLatency at solverTime yield none.
func (s *Synthesizer) Synthesize(dst *Seeds, events []event.Event, cfg Config, solverTime, batchTime float64, solverID int32) int {
	if len(events) == 0 {
		return 0
	}
	if solverTime-batchTime > cfg.MaxLatency {
		s.stats.OnCounter(stats.EventsStale, int64(len(events)))
		return 0
	}

	countLo, countHi := orderInt(cfg.CountMin, cfg.CountMax)
	if countLo < 0 {
		countLo = 0
	}
	if countHi < 0 {
		countHi = 0
	}
	chance := clamp32(cfg.Chance, 0, 1)

	added := 0
	for i := range events {
		e := &events[i]
		n := countLo
		if countHi > countLo {
			n += s.rng.Intn(countHi - countLo + 1)
		}
		for j := 0; j < n; j++ {
			if s.rng.Float32() > chance {
				continue
			}
			r := s.record(e, &cfg, batchTime, solverID, j)
			dst.Append(r)
			added++
		}
	}
	if added > 0 {
		s.stats.OnCounter(stats.SeedsSpawned, int64(added))
	}
	return added
}

func (s *Synthesizer) record(e *event.Event, cfg *Config, batchTime float64, solverID int32, j int) Record {
	posLo, posHi := order32(cfg.PositionMagnitudeMin, cfg.PositionMagnitudeMax)
	var offset mgl32.Vec3
	for a := 0; a < 3; a++ {
		offset[a] = s.between(posLo, posHi) * s.sign()
	}

	var velOffset mgl32.Vec3
	for a := 0; a < 3; a++ {
		lo, hi := order32(cfg.VelocityOffsetMin[a], cfg.VelocityOffsetMax[a])
		velOffset[a] = s.between(lo, hi)
	}

	v := e.VelocityDelta().Mul(cfg.InheritedVelocityMultiplier).
		Add(s.velocity(e, cfg)).
		Add(velOffset)
	v = clampMagnitude(v, cfg.FinalVelocityMin, cfg.FinalVelocityMax)

	r := Record{
		Position:         e.Location.Add(offset),
		Velocity:         v,
		SolverID:         solverID,
		IncomingLocation: e.Location,
		Time:             batchTime,
		ExtentMin:        e.Geometry.ExtentMin,
		ExtentMax:        e.Geometry.ExtentMax,
		Volume:           e.Geometry.Volume,
		Bounds:           e.Geometry.Bounds,
		SurfaceType:      e.Geometry.SurfaceType,
		Translation:      e.Geometry.Transform.Translation,
		Rotation:         e.Geometry.Transform.Rotation,
		Scale:            e.Geometry.Transform.Scale,
	}
	if e.Kind == event.KindCollision {
		c := &e.Collision
		r.Impulse = c.AccumulatedImpulse
		r.Normal = c.Normal
		r.Velocity1, r.Velocity2 = c.Velocity1, c.Velocity2
		r.AngularVelocity1, r.AngularVelocity2 = c.AngularVelocity1, c.AngularVelocity2
		r.Mass1, r.Mass2 = c.Mass1, c.Mass2
	} else {
		r.Velocity1 = e.Body.Velocity
		r.AngularVelocity1 = e.Body.AngularVelocity
		r.Mass1 = e.Body.Mass
	}

	m := event.DefaultMaterial()
	if cfg.FetchMaterials && s.lookup != nil {
		if got, ok := s.lookup.Material(e.Proxy, e.MaterialName()); ok {
			m = got
		}
	}
	r.Friction, r.Restitution, r.Density = m.Friction, m.Restitution, m.Density
	r.Color = event.DefaultColor
	if len(m.Colors) > 0 {
		r.Color = m.Colors[s.rng.Intn(len(m.Colors))]
	}
	switch cfg.DebugColor {
	case DebugBySolver:
		r.Color = Palette[int(solverID)%len(Palette)]
	case DebugByParticleIndex:
		r.Color = Palette[j%len(Palette)]
	}
	return r
}

func (s *Synthesizer) velocity(e *event.Event, cfg *Config) mgl32.Vec3 {
	lo, hi := order32(cfg.VelocityMagnitudeMin, cfg.VelocityMagnitudeMax)
	mag := s.between(lo, hi)
	switch cfg.Model {
	case NormalCone:
		spread := clamp32(cfg.SpreadAngleMax, 0, 90)
		return s.cone(e.Normal(), mgl32.DegToRad(spread)).Mul(mag)
	case RandomDistributionWithBurst:
		v := s.unit().Mul(mag)
		if s.rng.Float32() < cfg.BurstChance {
			v = v.Mul(cfg.BurstMultiplier)
		}
		return v
	default:
		return s.unit().Mul(mag)
	}
}

// unit is uniform on the sphere.
func (s *Synthesizer) unit() mgl32.Vec3 {
	z := 2*s.rng.Float64() - 1
	phi := 2 * math.Pi * s.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return mgl32.Vec3{float32(r * math.Cos(phi)), float32(r * math.Sin(phi)), float32(z)}
}

// cone is uniform over the spherical cap of the given half-angle around axis.
// A zero axis has no direction and falls back to unit.
func (s *Synthesizer) cone(axis mgl32.Vec3, halfAngle float32) mgl32.Vec3 {
	if axis.Len() < 1e-6 {
		return s.unit()
	}
	cosMax := math.Cos(float64(halfAngle))
	cosT := 1 - s.rng.Float64()*(1-cosMax)
	sinT := math.Sqrt(1 - cosT*cosT)
	phi := 2 * math.Pi * s.rng.Float64()
	local := mgl32.Vec3{float32(sinT * math.Cos(phi)), float32(sinT * math.Sin(phi)), float32(cosT)}
	q := mgl32.QuatBetweenVectors(mgl32.Vec3{0, 0, 1}, axis.Normalize())
	return q.Rotate(local)
}

func (s *Synthesizer) between(lo, hi float32) float32 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Float32()*(hi-lo)
}

func (s *Synthesizer) sign() float32 {
	if s.rng.Intn(2) == 0 {
		return -1
	}
	return 1
}

// clampMagnitude rescales v into [lo, hi]; a negative bound is inactive. A zero
// vector has no direction and is returned unchanged.
func clampMagnitude(v mgl32.Vec3, lo, hi float32) mgl32.Vec3 {
	if lo < 0 && hi < 0 {
		return v
	}
	l := v.Len()
	if l == 0 {
		return v
	}
	if lo >= 0 && l < lo {
		return v.Mul(lo / l)
	}
	if hi >= 0 && l > hi {
		return v.Mul(hi / l)
	}
	return v
}

func order32(a, b float32) (float32, float32) {
	if a > b {
		return b, a
	}
	return a, b
}

func orderInt(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
