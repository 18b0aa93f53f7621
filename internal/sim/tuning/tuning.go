package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every schema and validation failure.
var ErrInvalid = errors.New("invalid tuning")

// Pair is a [min, max] range; a bound is active only when positive.
type Pair [2]float32

// Vec3 is an [x, y, z] triple.
type Vec3 [3]float32

type Tuning struct {
	TickHz int   `yaml:"tick_hz" json:"tick_hz"`
	Seed   int64 `yaml:"seed" json:"seed"`

	Sources   []SourceSpec   `yaml:"sources,omitempty" json:"sources,omitempty"`
	Instances []InstanceSpec `yaml:"instances" json:"instances"`
}

// SourceSpec names a solver an instance can bind. A source with a recording
// path replays it; otherwise a synthetic scene is generated.
type SourceSpec struct {
	Name      string    `yaml:"name" json:"name"`
	Recording string    `yaml:"recording,omitempty" json:"recording,omitempty"`
	Loop      bool      `yaml:"loop,omitempty" json:"loop,omitempty"`
	Scene     SceneSpec `yaml:"scene" json:"scene"`
}

type SceneSpec struct {
	FrameHz        float64 `yaml:"frame_hz" json:"frame_hz"`
	EventsPerFrame int     `yaml:"events_per_frame" json:"events_per_frame"`
	Extent         float32 `yaml:"extent" json:"extent"`
	Seed           int64   `yaml:"seed" json:"seed"`
}

type InstanceSpec struct {
	Name                 string   `yaml:"name" json:"name"`
	Solvers              []string `yaml:"solvers" json:"solvers"`
	DataProcessFrequency float64  `yaml:"data_process_frequency" json:"data_process_frequency"`
	MaxSpawnPerTick      int      `yaml:"max_spawn_per_tick" json:"max_spawn_per_tick"`
	DoSpawn              bool     `yaml:"do_spawn" json:"do_spawn"`
	ExtendedLookup       bool     `yaml:"extended_lookup" json:"extended_lookup"`
	EventKind            string   `yaml:"event_kind" json:"event_kind"`
	Sort                 string   `yaml:"sort" json:"sort"`
	DebugColor           string   `yaml:"debug_color" json:"debug_color"`

	Filter      FilterSpec      `yaml:"filter" json:"filter"`
	SpatialHash SpatialHashSpec `yaml:"spatial_hash" json:"spatial_hash"`
	Spawn       SpawnSpec       `yaml:"spawn" json:"spawn"`
}

type FilterSpec struct {
	Impulse     Pair         `yaml:"impulse" json:"impulse"`
	Speed       Pair         `yaml:"speed" json:"speed"`
	Mass        Pair         `yaml:"mass" json:"mass"`
	ExtentMin   Pair         `yaml:"extent_min" json:"extent_min"`
	ExtentMax   Pair         `yaml:"extent_max" json:"extent_max"`
	Volume      Pair         `yaml:"volume" json:"volume"`
	SolverTime  Pair         `yaml:"solver_time" json:"solver_time"`
	SurfaceType int32        `yaml:"surface_type" json:"surface_type"`
	Materials   []string     `yaml:"materials,omitempty" json:"materials,omitempty"`
	Location    LocationSpec `yaml:"location" json:"location"`
}

type LocationSpec struct {
	Mode string    `yaml:"mode" json:"mode"`
	Axes [3]string `yaml:"axes" json:"axes"`
	Min  Vec3      `yaml:"min" json:"min"`
	Max  Vec3      `yaml:"max" json:"max"`
}

type SpatialHashSpec struct {
	Enabled          bool `yaml:"enabled" json:"enabled"`
	VolumeMin        Vec3 `yaml:"volume_min" json:"volume_min"`
	VolumeMax        Vec3 `yaml:"volume_max" json:"volume_max"`
	CellSize         Vec3 `yaml:"cell_size" json:"cell_size"`
	MaxEventsPerCell int  `yaml:"max_events_per_cell" json:"max_events_per_cell"`
}

type SpawnSpec struct {
	Multiplier                  [2]int  `yaml:"multiplier" json:"multiplier"`
	Chance                      float32 `yaml:"chance" json:"chance"`
	PositionMagnitude           Pair    `yaml:"position_magnitude" json:"position_magnitude"`
	VelocityOffsetMin           Vec3    `yaml:"velocity_offset_min" json:"velocity_offset_min"`
	VelocityOffsetMax           Vec3    `yaml:"velocity_offset_max" json:"velocity_offset_max"`
	VelocityModel               string  `yaml:"velocity_model" json:"velocity_model"`
	VelocityMagnitude           Pair    `yaml:"velocity_magnitude" json:"velocity_magnitude"`
	SpreadAngleMax              float32 `yaml:"spread_angle_max" json:"spread_angle_max"`
	InheritedVelocityMultiplier float32 `yaml:"inherited_velocity_multiplier" json:"inherited_velocity_multiplier"`
	FinalVelocity               Pair    `yaml:"final_velocity" json:"final_velocity"`
	MaxLatency                  float64 `yaml:"max_latency" json:"max_latency"`
	BurstChance                 float32 `yaml:"burst_chance" json:"burst_chance"`
	BurstMultiplier             float32 `yaml:"burst_multiplier" json:"burst_multiplier"`
	FetchMaterials              bool    `yaml:"fetch_materials" json:"fetch_materials"`
}

var unbounded = Pair{-1, -1}

func DefaultInstance() InstanceSpec {
	return InstanceSpec{
		Name:                 "default",
		Solvers:              []string{"synthetic"},
		DataProcessFrequency: 10,
		MaxSpawnPerTick:      50,
		DoSpawn:              true,
		EventKind:            "collision",
		Sort:                 "none",
		DebugColor:           "none",
		Filter: FilterSpec{
			Impulse:     unbounded,
			Speed:       unbounded,
			Mass:        unbounded,
			ExtentMin:   unbounded,
			ExtentMax:   unbounded,
			Volume:      unbounded,
			SolverTime:  unbounded,
			SurfaceType: -1,
			Location: LocationSpec{
				Mode: "inclusive",
				Axes: [3]string{"none", "none", "none"},
			},
		},
		SpatialHash: SpatialHashSpec{
			VolumeMin:        Vec3{-100, -100, -100},
			VolumeMax:        Vec3{100, 100, 100},
			CellSize:         Vec3{10, 10, 10},
			MaxEventsPerCell: 1,
		},
		Spawn: SpawnSpec{
			Multiplier:                  [2]int{1, 1},
			Chance:                      1,
			VelocityModel:               "random",
			VelocityMagnitude:           Pair{1, 2},
			SpreadAngleMax:              30,
			InheritedVelocityMultiplier: 1,
			FinalVelocity:               unbounded,
			MaxLatency:                  1,
			BurstChance:                 0.2,
			BurstMultiplier:             1.25,
		},
	}
}

func DefaultSource() SourceSpec {
	return SourceSpec{
		Name: "synthetic",
		Scene: SceneSpec{
			FrameHz:        30,
			EventsPerFrame: 16,
			Extent:         80,
			Seed:           1,
		},
	}
}

func defaults() Tuning {
	return Tuning{
		TickHz:    60,
		Sources:   []SourceSpec{DefaultSource()},
		Instances: []InstanceSpec{DefaultInstance()},
	}
}

// UnmarshalYAML starts every listed instance from the defaults so a partial
// entry only overrides what it names.
func (s *InstanceSpec) UnmarshalYAML(value *yaml.Node) error {
	*s = DefaultInstance()
	type plain InstanceSpec
	return value.Decode((*plain)(s))
}

func (s *SourceSpec) UnmarshalYAML(value *yaml.Node) error {
	*s = DefaultSource()
	type plain SourceSpec
	return value.Decode((*plain)(s))
}

// Load reads a tuning file. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	if strings.TrimSpace(path) == "" {
		t := defaults()
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return defaults(), err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	t := defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize clamps values into the ranges an editor would allow.
func (t *Tuning) Normalize() {
	if t == nil {
		return
	}
	if t.TickHz <= 0 {
		t.TickHz = 60
	}
	for i := range t.Sources {
		sc := &t.Sources[i].Scene
		if sc.FrameHz <= 0 {
			sc.FrameHz = 30
		}
		if sc.EventsPerFrame < 0 {
			sc.EventsPerFrame = 0
		}
	}
	for i := range t.Instances {
		t.Instances[i].normalize()
	}
}

func (s *InstanceSpec) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	if s.DataProcessFrequency < 1 {
		s.DataProcessFrequency = 1
	}
	if s.MaxSpawnPerTick < 0 {
		s.MaxSpawnPerTick = 0
	}

	h := &s.SpatialHash
	for a := 0; a < 3; a++ {
		if h.CellSize[a] < 1 {
			h.CellSize[a] = 1
		}
	}
	if h.MaxEventsPerCell < 0 {
		h.MaxEventsPerCell = 0
	}

	sp := &s.Spawn
	for i := range sp.Multiplier {
		if sp.Multiplier[i] < 0 {
			sp.Multiplier[i] = 0
		}
	}
	sp.Chance = clamp(sp.Chance, 0, 1)
	for i := range sp.VelocityMagnitude {
		if sp.VelocityMagnitude[i] < 0 {
			sp.VelocityMagnitude[i] = 0
		}
	}
	sp.SpreadAngleMax = clamp(sp.SpreadAngleMax, 0, 90)
	if sp.MaxLatency < 0 {
		sp.MaxLatency = 0
	}
	sp.BurstChance = clamp(sp.BurstChance, 0, 1)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (t Tuning) Validate() error {
	if t.TickHz <= 0 {
		return fmt.Errorf("%w: tick_hz must be > 0", ErrInvalid)
	}
	sources := map[string]bool{}
	for i, src := range t.Sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return fmt.Errorf("%w: sources[%d] has empty name", ErrInvalid, i)
		}
		if sources[name] {
			return fmt.Errorf("%w: duplicate source name: %s", ErrInvalid, name)
		}
		sources[name] = true
	}
	if len(t.Instances) == 0 {
		return fmt.Errorf("%w: instances must not be empty", ErrInvalid)
	}
	names := map[string]bool{}
	for i, in := range t.Instances {
		if in.Name == "" {
			return fmt.Errorf("%w: instances[%d] has empty name", ErrInvalid, i)
		}
		if names[in.Name] {
			return fmt.Errorf("%w: duplicate instance name: %s", ErrInvalid, in.Name)
		}
		names[in.Name] = true
		for _, s := range in.Solvers {
			if !sources[s] {
				return fmt.Errorf("%w: instance %s references unknown source %q", ErrInvalid, in.Name, s)
			}
		}
		if _, err := in.Config(); err != nil {
			return fmt.Errorf("%w: instance %s: %v", ErrInvalid, in.Name, err)
		}
	}
	return nil
}

// Source returns the named source entry.
func (t Tuning) Source(name string) (SourceSpec, bool) {
	for _, s := range t.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return SourceSpec{}, false
}

// Digest is the sha256 of the tuning's canonical JSON form.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	return sha256Hex(b)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
