package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"debrisfx/internal/sim/event"
)

// Catalog is the scene data behind the extended lookup: physical materials by
// name and body geometry by proxy. It is read-only after Load and safe for
// concurrent use.
type Catalog struct {
	Materials map[string]MaterialDef
	Bodies    map[int32]BodyDef
	Digest    string
}

type MaterialDef struct {
	Name        string       `yaml:"name"`
	Friction    *float32     `yaml:"friction"`
	Restitution *float32     `yaml:"restitution"`
	Density     *float32     `yaml:"density"`
	Colors      [][4]float32 `yaml:"colors"`
}

type BodyDef struct {
	Proxy       int32      `yaml:"proxy"`
	Material    string     `yaml:"material"`
	ExtentMin   float32    `yaml:"extent_min"`
	ExtentMax   float32    `yaml:"extent_max"`
	Volume      float32    `yaml:"volume"`
	Bounds      [3]float32 `yaml:"bounds"`
	SurfaceType int32      `yaml:"surface_type"`
	Translation [3]float32 `yaml:"translation"`
	// Rotation is a quaternion as [w, x, y, z]; all zero means identity.
	Rotation [4]float32  `yaml:"rotation"`
	Scale    *[3]float32 `yaml:"scale"`
}

type file struct {
	Materials []MaterialDef `yaml:"materials"`
	Bodies    []BodyDef     `yaml:"bodies"`
}

// Load reads a catalog file. An empty path yields an empty catalog, which
// resolves nothing.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return &Catalog{Materials: map[string]MaterialDef{}, Bodies: map[int32]BodyDef{}, Digest: sha256Hex(nil)}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("materials.yaml: %w", err)
	}
	return c, nil
}

func Parse(raw []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, err
	}
	c := &Catalog{
		Materials: make(map[string]MaterialDef, len(f.Materials)),
		Bodies:    make(map[int32]BodyDef, len(f.Bodies)),
		Digest:    sha256Hex(raw),
	}
	for _, m := range f.Materials {
		if m.Name == "" {
			return nil, fmt.Errorf("material with empty name")
		}
		if _, dup := c.Materials[m.Name]; dup {
			return nil, fmt.Errorf("duplicate material: %s", m.Name)
		}
		c.Materials[m.Name] = m
	}
	for _, b := range f.Bodies {
		if b.Proxy < 0 {
			return nil, fmt.Errorf("body proxy must be >= 0, got %d", b.Proxy)
		}
		if _, dup := c.Bodies[b.Proxy]; dup {
			return nil, fmt.Errorf("duplicate body proxy: %d", b.Proxy)
		}
		if b.Material != "" {
			if _, ok := c.Materials[b.Material]; !ok {
				return nil, fmt.Errorf("body %d references unknown material %q", b.Proxy, b.Material)
			}
		}
		c.Bodies[b.Proxy] = b
	}
	return c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// MaterialNames returns the material names in sorted order.
func (c *Catalog) MaterialNames() []string {
	names := make([]string, 0, len(c.Materials))
	for n := range c.Materials {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Geometry implements event.Lookup.
func (c *Catalog) Geometry(proxy int32) (event.Geometry, bool) {
	if c == nil || proxy == event.NoProxy {
		return event.Geometry{}, false
	}
	b, ok := c.Bodies[proxy]
	if !ok {
		return event.Geometry{}, false
	}
	g := event.Geometry{
		ExtentMin:   b.ExtentMin,
		ExtentMax:   b.ExtentMax,
		Volume:      b.Volume,
		Bounds:      mgl32.Vec3(b.Bounds),
		SurfaceType: b.SurfaceType,
		Transform:   event.IdentityTransform(),
	}
	g.Transform.Translation = mgl32.Vec3(b.Translation)
	if b.Rotation != ([4]float32{}) {
		q := mgl32.Quat{W: b.Rotation[0], V: mgl32.Vec3{b.Rotation[1], b.Rotation[2], b.Rotation[3]}}
		g.Transform.Rotation = q.Normalize()
	}
	if b.Scale != nil {
		g.Transform.Scale = mgl32.Vec3(*b.Scale)
	}
	return g, true
}

// Material implements event.Lookup. A non-empty name is looked up directly;
// otherwise the body's assigned material is used.
func (c *Catalog) Material(proxy int32, name string) (event.Material, bool) {
	if c == nil {
		return event.Material{}, false
	}
	if name == "" {
		b, ok := c.Bodies[proxy]
		if !ok || b.Material == "" {
			return event.Material{}, false
		}
		name = b.Material
	}
	def, ok := c.Materials[name]
	if !ok {
		return event.Material{}, false
	}
	return def.material(), true
}

func (d MaterialDef) material() event.Material {
	m := event.DefaultMaterial()
	if d.Friction != nil {
		m.Friction = *d.Friction
	}
	if d.Restitution != nil {
		m.Restitution = *d.Restitution
	}
	if d.Density != nil {
		m.Density = *d.Density
	}
	if len(d.Colors) > 0 {
		m.Colors = make([]mgl32.Vec4, len(d.Colors))
		for i, col := range d.Colors {
			m.Colors[i] = mgl32.Vec4(col)
		}
	}
	return m
}
