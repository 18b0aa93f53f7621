package spawn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/stats"
)

func near(a, b float32) bool { return math.Abs(float64(a-b)) < 1e-4 }

func collisionAt(p mgl32.Vec3) event.Event {
	return event.Event{
		Kind:     event.KindCollision,
		Location: p,
		Proxy:    event.NoProxy,
		Collision: event.Collision{
			Normal:    mgl32.Vec3{0, 0, 1},
			Velocity1: mgl32.Vec3{1, 0, 0},
			Mass1:     2,
			Mass2:     3,
		},
		Geometry: event.DefaultGeometry(),
	}
}

func newSynth(seed int64, obs stats.Observer) *Synthesizer {
	return NewSynthesizer(rand.New(rand.NewSource(seed)), nil, obs)
}

func TestFixedMultiplierEmitsExactCount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 2, 2
	cfg.Chance = 1

	var seeds Seeds
	n := newSynth(1, nil).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 0)
	if n != 2 || seeds.Len() != 2 {
		t.Fatalf("got n=%d len=%d want 2", n, seeds.Len())
	}
	r := seeds.At(1)
	if r.Mass1 != 2 || r.Mass2 != 3 || r.Normal != (mgl32.Vec3{0, 0, 1}) {
		t.Fatalf("passthrough fields lost: %+v", r)
	}
	if r.Friction != event.DefaultFriction || r.Restitution != event.DefaultRestitution || r.Density != event.DefaultDensity {
		t.Fatalf("default material not applied: %+v", r)
	}
	if r.Color != event.DefaultColor {
		t.Fatalf("default color: got %v", r.Color)
	}
}

func TestLatencyGateDropsStaleEvents(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 5, 10
	cfg.MaxLatency = 0.5

	var tally stats.Tally
	var seeds Seeds
	n := newSynth(1, &tally).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{}), collisionAt(mgl32.Vec3{})}, cfg, 10, 9, 0)
	if n != 0 || seeds.Len() != 0 {
		t.Fatalf("stale batch produced %d seeds", n)
	}
	if tally.Get(stats.EventsStale) != 2 {
		t.Fatalf("events_stale: got %d want 2", tally.Get(stats.EventsStale))
	}
}

func TestZeroChanceEmitsAlmostNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 50, 50
	cfg.Chance = -3 // clamps to 0

	var seeds Seeds
	n := newSynth(3, nil).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 0)
	if n > 1 {
		t.Fatalf("chance 0 emitted %d seeds", n)
	}
}

func TestInvertedCountRangeIsNormalized(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 4, 2
	var seeds Seeds
	s := newSynth(5, nil)
	for i := 0; i < 20; i++ {
		seeds.Truncate(0)
		n := s.Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 0)
		if n < 2 || n > 4 {
			t.Fatalf("count outside [2,4]: %d", n)
		}
	}
}

func TestClampMagnitude(t *testing.T) {
	v := clampMagnitude(mgl32.Vec3{2, 0, 0}, 5, 10)
	if !near(v.Len(), 5) || !near(v.X(), 5) || v.Y() != 0 || v.Z() != 0 {
		t.Fatalf("min clamp: got %v", v)
	}
	v = clampMagnitude(mgl32.Vec3{0, 30, 40}, 5, 10)
	if !near(v.Len(), 10) || !near(v.Y(), 6) || !near(v.Z(), 8) {
		t.Fatalf("max clamp: got %v", v)
	}
	v = clampMagnitude(mgl32.Vec3{0, 3, 4}, -1, -1)
	if v != (mgl32.Vec3{0, 3, 4}) {
		t.Fatalf("inactive clamp changed vector: %v", v)
	}
	v = clampMagnitude(mgl32.Vec3{}, 5, -1)
	if v != (mgl32.Vec3{}) {
		t.Fatalf("zero vector must stay zero: %v", v)
	}
}

func TestFinalVelocityClampEndToEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VelocityMagnitudeMin, cfg.VelocityMagnitudeMax = 0, 0
	cfg.InheritedVelocityMultiplier = 2
	cfg.FinalVelocityMin, cfg.FinalVelocityMax = 5, 10

	var seeds Seeds
	newSynth(9, nil).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 0)
	// velocity delta (1,0,0) * 2 = magnitude 2, clamped up to 5.
	got := seeds.Velocity[0]
	if !near(got.Len(), 5) || !near(got.X(), 5) {
		t.Fatalf("velocity: got %v", got)
	}
}

func TestPositionOffsetWithinMagnitude(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 20, 20
	cfg.PositionMagnitudeMin, cfg.PositionMagnitudeMax = 3, 1
	origin := mgl32.Vec3{10, 10, 10}

	var seeds Seeds
	newSynth(11, nil).Synthesize(&seeds, []event.Event{collisionAt(origin)}, cfg, 1, 1, 0)
	for i, p := range seeds.Position {
		d := p.Sub(origin)
		for a := 0; a < 3; a++ {
			m := float32(math.Abs(float64(d[a])))
			if m < 1-1e-4 || m > 3+1e-4 {
				t.Fatalf("seed %d axis %d offset %v outside [1,3]", i, a, d[a])
			}
		}
	}
}

func TestVelocityModels(t *testing.T) {
	s := newSynth(13, nil)
	e := collisionAt(mgl32.Vec3{})
	e.Collision.Normal = mgl32.Vec3{0, 5, 0}

	cfg := DefaultConfig()
	cfg.VelocityMagnitudeMin, cfg.VelocityMagnitudeMax = 2, 2
	for i := 0; i < 200; i++ {
		if v := s.velocity(&e, &cfg); !near(v.Len(), 2) {
			t.Fatalf("random: |v| = %v want 2", v.Len())
		}
	}

	cfg.Model = NormalCone
	cfg.SpreadAngleMax = 30
	cosLimit := math.Cos(30*math.Pi/180) - 1e-4
	for i := 0; i < 200; i++ {
		v := s.velocity(&e, &cfg)
		if cos := float64(v.Normalize().Dot(mgl32.Vec3{0, 1, 0})); cos < cosLimit {
			t.Fatalf("cone sample outside 30 degrees: %v (cos %v)", v, cos)
		}
	}

	cfg.Model = RandomDistributionWithBurst
	cfg.BurstChance = 1
	cfg.BurstMultiplier = 1.25
	if v := s.velocity(&e, &cfg); !near(v.Len(), 2.5) {
		t.Fatalf("burst: |v| = %v want 2.5", v.Len())
	}
	cfg.BurstChance = 0
	if v := s.velocity(&e, &cfg); !near(v.Len(), 2) {
		t.Fatalf("no burst: |v| = %v want 2", v.Len())
	}
}

func TestConeWithZeroNormalFallsBack(t *testing.T) {
	s := newSynth(17, nil)
	v := s.cone(mgl32.Vec3{}, mgl32.DegToRad(10))
	if !near(v.Len(), 1) {
		t.Fatalf("fallback should be a unit vector, got %v", v)
	}
}

func TestDebugColors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountMin, cfg.CountMax = 3, 3
	cfg.DebugColor = DebugBySolver

	var seeds Seeds
	newSynth(1, nil).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 1)
	for _, c := range seeds.Color {
		if c != (mgl32.Vec4{1, 0, 0, 1}) {
			t.Fatalf("solver 1 should be red, got %v", c)
		}
	}

	cfg.DebugColor = DebugByParticleIndex
	seeds = Seeds{}
	newSynth(1, nil).Synthesize(&seeds, []event.Event{collisionAt(mgl32.Vec3{})}, cfg, 1, 1, 0)
	for j, c := range seeds.Color {
		if c != Palette[j] {
			t.Fatalf("seed %d: got %v want %v", j, c, Palette[j])
		}
	}
}

type materialLookup struct{ m event.Material }

func (materialLookup) Geometry(int32) (event.Geometry, bool) { return event.Geometry{}, false }
func (l materialLookup) Material(proxy int32, name string) (event.Material, bool) {
	return l.m, name == "Steel"
}

func TestMaterialLookup(t *testing.T) {
	lookup := materialLookup{m: event.Material{Friction: 0.1, Restitution: 0.9, Density: 7.8, Colors: []mgl32.Vec4{{0.2, 0.2, 0.2, 1}}}}
	s := NewSynthesizer(rand.New(rand.NewSource(1)), lookup, nil)
	e := event.Event{Kind: event.KindBreaking, Body: event.Body{PhysicalMaterialName: "Steel", Mass: 4}, Geometry: event.DefaultGeometry()}

	cfg := DefaultConfig()
	var seeds Seeds
	s.Synthesize(&seeds, []event.Event{e}, cfg, 1, 1, 0)
	if seeds.Friction[0] != event.DefaultFriction {
		t.Fatalf("lookup must be ignored when FetchMaterials is off")
	}

	cfg.FetchMaterials = true
	seeds = Seeds{}
	s.Synthesize(&seeds, []event.Event{e}, cfg, 1, 1, 0)
	r := seeds.At(0)
	if r.Friction != 0.1 || r.Density != 7.8 || r.Color != (mgl32.Vec4{0.2, 0.2, 0.2, 1}) {
		t.Fatalf("material not applied: %+v", r)
	}
	if r.Mass1 != 4 || r.Mass2 != 0 {
		t.Fatalf("breaking mass passthrough: %v %v", r.Mass1, r.Mass2)
	}
}

func TestSeedsTakeMovesArrays(t *testing.T) {
	var s Seeds
	s.Append(Record{Position: mgl32.Vec3{1, 2, 3}})
	taken := s.Take()
	if taken.Len() != 1 || s.Len() != 0 || s.Position != nil {
		t.Fatalf("take did not move: taken=%d left=%d", taken.Len(), s.Len())
	}

	var empty Seeds
	empty.Append(Record{})
	empty.Truncate(0)
	out := empty.Take()
	if out.Position != nil || out.Color != nil {
		t.Fatalf("empty arrays must come back nil")
	}
}
