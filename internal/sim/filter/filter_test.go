package filter

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
)

func massEvents(masses ...float32) []event.Event {
	out := make([]event.Event, len(masses))
	for i, m := range masses {
		out[i] = event.Event{Kind: event.KindTrailing, Body: event.Body{Mass: m}, Geometry: event.DefaultGeometry()}
		out[i].Location = mgl32.Vec3{float32(i), 0, 0}
	}
	return out
}

func TestApplyFastPathReturnsInput(t *testing.T) {
	in := massEvents(1, 2, 3)
	out := Apply(in, DefaultConfig(), 1)
	if len(out) != len(in) || &out[0] != &in[0] {
		t.Fatalf("expected identical slice on the fast path")
	}
	for i := range in {
		if out[i].Body.Mass != float32(i+1) {
			t.Fatalf("order changed at %d", i)
		}
	}
}

func TestRangeDecisionTable(t *testing.T) {
	cases := []struct {
		r    Range
		v    float32
		want bool
	}{
		{Range{2, -1}, 1.9, false},
		{Range{2, -1}, 2, true},
		{Range{2, -1}, 100, true},
		{Range{-1, 5}, 5, true},
		{Range{-1, 5}, 5.1, false},
		{Range{-1, 5}, -10, true},
		{Range{2, 5}, 1, false},
		{Range{2, 5}, 2, true},
		{Range{2, 5}, 5, true},
		{Range{2, 5}, 6, false},
		{Range{-1, -1}, -1e9, true},
	}
	for _, tc := range cases {
		if got := tc.r.Pass(tc.v); got != tc.want {
			t.Fatalf("Range%v.Pass(%v): got %v want %v", tc.r, tc.v, got, tc.want)
		}
	}
}

func TestApplyMassRangeKeepsOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mass = Range{Min: 2, Max: 5}
	out := Apply(massEvents(1, 3, 6, 5, 2), cfg, 1)
	want := []float32{3, 5, 2}
	if len(out) != len(want) {
		t.Fatalf("len: got %d want %d", len(out), len(want))
	}
	for i, w := range want {
		if out[i].Body.Mass != w {
			t.Fatalf("out[%d]: got %v want %v", i, out[i].Body.Mass, w)
		}
	}
}

func TestApplyImpulseOnlyConstrainsCollisions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Impulse = Range{Min: 10, Max: -1}
	events := []event.Event{
		{Kind: event.KindCollision, Collision: event.Collision{AccumulatedImpulse: mgl32.Vec3{3, 4, 0}}},
		{Kind: event.KindCollision, Collision: event.Collision{AccumulatedImpulse: mgl32.Vec3{0, 0, 20}}},
		{Kind: event.KindBreaking},
	}
	out := Apply(events, cfg, 1)
	if len(out) != 2 || out[0].Collision.AccumulatedImpulse.Z() != 20 || out[1].Kind != event.KindBreaking {
		t.Fatalf("unexpected survivors: %+v", out)
	}
}

func TestApplyMaterialAllowSetBreakingOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Materials = []string{"Concrete"}
	events := []event.Event{
		{Kind: event.KindBreaking, Body: event.Body{PhysicalMaterialName: "Glass"}},
		{Kind: event.KindBreaking, Body: event.Body{PhysicalMaterialName: "Concrete"}},
		{Kind: event.KindTrailing, Body: event.Body{PhysicalMaterialName: "Glass"}},
	}
	out := Apply(events, cfg, 1)
	if len(out) != 2 || out[0].Body.PhysicalMaterialName != "Concrete" || out[1].Kind != event.KindTrailing {
		t.Fatalf("unexpected survivors: %+v", out)
	}
}

func TestApplySurfaceTypeAndSolverTime(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SurfaceType = 2
	events := massEvents(1, 1)
	events[1].Geometry.SurfaceType = 2
	if out := Apply(events, cfg, 1); len(out) != 1 || out[0].Geometry.SurfaceType != 2 {
		t.Fatalf("surface filter: %+v", out)
	}

	cfg = DefaultConfig()
	cfg.SolverTime = Range{Min: 5, Max: -1}
	if out := Apply(massEvents(1, 2), cfg, 4); len(out) != 0 {
		t.Fatalf("solver time below min should drop everything, got %d", len(out))
	}
}

func TestLocationInclusiveAndExclusive(t *testing.T) {
	loc := Location{
		Mode: Inclusive,
		Axes: [3]AxisMode{AxisMinMax, AxisNone, AxisNone},
		Min:  mgl32.Vec3{0, 0, 0},
		Max:  mgl32.Vec3{10, 0, 0},
	}
	// Inclusive MinMax drops x <= min or x >= max.
	for x, want := range map[float32]bool{-1: false, 0: false, 5: true, 10: false, 11: false} {
		if got := loc.Pass(mgl32.Vec3{x, 0, 0}); got != want {
			t.Fatalf("inclusive x=%v: got %v want %v", x, got, want)
		}
	}
	loc.Mode = Exclusive
	for x, want := range map[float32]bool{-1: true, 0: true, 5: false, 10: true, 11: true} {
		if got := loc.Pass(mgl32.Vec3{x, 0, 0}); got != want {
			t.Fatalf("exclusive x=%v: got %v want %v", x, got, want)
		}
	}

	single := Location{Mode: Inclusive, Axes: [3]AxisMode{AxisNone, AxisNone, AxisMin}, Min: mgl32.Vec3{0, 0, 3}}
	if single.Pass(mgl32.Vec3{0, 0, 3}) || !single.Pass(mgl32.Vec3{0, 0, 4}) {
		t.Fatalf("inclusive min on z misbehaves")
	}
	single.Mode = Exclusive
	if !single.Pass(mgl32.Vec3{0, 0, 3}) || single.Pass(mgl32.Vec3{0, 0, 4}) {
		t.Fatalf("exclusive min on z misbehaves")
	}
}
