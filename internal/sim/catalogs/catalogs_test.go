package catalogs

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
)

const sample = `
materials:
  - name: Glass
    friction: 0.1
    density: 2.5
    colors: [[0.8, 0.9, 1, 1], [0.6, 0.7, 0.9, 1]]
  - name: Concrete
bodies:
  - proxy: 4
    material: Concrete
    extent_min: 10
    extent_max: 40
    volume: 8000
    bounds: [20, 40, 10]
    surface_type: 3
    translation: [1, 2, 3]
    rotation: [0, 0, 0, 2]
  - proxy: 9
`

func TestMaterialByNameAndByProxy(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	glass, ok := c.Material(event.NoProxy, "Glass")
	if !ok {
		t.Fatalf("Glass not found")
	}
	if glass.Friction != 0.1 || glass.Density != 2.5 || glass.Restitution != event.DefaultRestitution {
		t.Fatalf("glass: %+v", glass)
	}
	if len(glass.Colors) != 2 || glass.Colors[1] != (mgl32.Vec4{0.6, 0.7, 0.9, 1}) {
		t.Fatalf("glass colors: %v", glass.Colors)
	}

	concrete, ok := c.Material(4, "")
	if !ok || concrete.Friction != event.DefaultFriction || concrete.Colors[0] != event.DefaultColor {
		t.Fatalf("concrete by proxy: %+v ok=%v", concrete, ok)
	}
	if _, ok := c.Material(9, ""); ok {
		t.Fatalf("body without material should not resolve")
	}
	if _, ok := c.Material(4, "Steel"); ok {
		t.Fatalf("unknown name should not resolve")
	}
	if got := c.MaterialNames(); len(got) != 2 || got[0] != "Concrete" {
		t.Fatalf("names: %v", got)
	}
}

func TestGeometryByProxy(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	g, ok := c.Geometry(4)
	if !ok {
		t.Fatalf("proxy 4 not found")
	}
	if g.ExtentMin != 10 || g.ExtentMax != 40 || g.Volume != 8000 || g.SurfaceType != 3 {
		t.Fatalf("geometry: %+v", g)
	}
	if g.Transform.Translation != (mgl32.Vec3{1, 2, 3}) || g.Transform.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Fatalf("transform: %+v", g.Transform)
	}
	if math.Abs(float64(g.Transform.Rotation.V[2])-1) > 1e-6 {
		t.Fatalf("rotation should be normalized: %+v", g.Transform.Rotation)
	}

	g, ok = c.Geometry(9)
	if !ok || g.Transform.Rotation != mgl32.QuatIdent() {
		t.Fatalf("zero rotation should be identity: %+v", g.Transform.Rotation)
	}
	if _, ok := c.Geometry(event.NoProxy); ok {
		t.Fatalf("NoProxy should not resolve")
	}
}

func TestParseRejectsBadReferences(t *testing.T) {
	bad := []string{
		"materials:\n  - name: A\n  - name: A\n",
		"bodies:\n  - proxy: 1\n    material: Missing\n",
		"bodies:\n  - proxy: -2\n",
		"materials:\n  - friction: 1\n",
	}
	for _, raw := range bad {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("expected an error for %q", raw)
		}
	}
}

func TestEmptyPathResolvesNothing(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Geometry(0); ok {
		t.Fatalf("empty catalog resolved geometry")
	}
	if c.Digest == "" {
		t.Fatalf("digest should be set")
	}
}

func TestNormalizerUsesCatalog(t *testing.T) {
	c, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	n := event.Normalizer{ExtendedLookup: true, Lookup: c}
	out := n.Normalize(event.Batch{
		Kind:      event.KindCollision,
		Timestamp: 1,
		Collisions: []event.RawCollision{
			{Proxy: 4},
			{Proxy: 77},
		},
	})
	if len(out) != 2 {
		t.Fatalf("events: %d", len(out))
	}
	if out[0].Geometry.Volume != 8000 {
		t.Fatalf("known proxy geometry: %+v", out[0].Geometry)
	}
	if out[1].Geometry != event.DefaultGeometry() {
		t.Fatalf("unknown proxy should get defaults: %+v", out[1].Geometry)
	}
}
