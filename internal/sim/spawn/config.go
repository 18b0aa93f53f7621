package spawn

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

type VelocityModel uint8

const (
	RandomDistribution VelocityModel = iota
	NormalCone
	RandomDistributionWithBurst
)

func (m VelocityModel) String() string {
	switch m {
	case RandomDistribution:
		return "random"
	case NormalCone:
		return "normal_cone"
	case RandomDistributionWithBurst:
		return "random_burst"
	}
	return fmt.Sprintf("model(%d)", uint8(m))
}

func ParseVelocityModel(s string) (VelocityModel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random":
		return RandomDistribution, nil
	case "normal_cone", "cone":
		return NormalCone, nil
	case "random_burst", "burst":
		return RandomDistributionWithBurst, nil
	}
	return RandomDistribution, fmt.Errorf("unknown velocity model %q", s)
}

type DebugColor uint8

const (
	DebugNone DebugColor = iota
	DebugBySolver
	DebugByParticleIndex
)

func ParseDebugColor(s string) (DebugColor, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return DebugNone, nil
	case "by_solver":
		return DebugBySolver, nil
	case "by_particle_index":
		return DebugByParticleIndex, nil
	}
	return DebugNone, fmt.Errorf("unknown debug color mode %q", s)
}

// Config drives seed synthesis. Pairs given as Min/Max may be in either order.
// FinalVelocityMin and FinalVelocityMax are inactive when negative.
type Config struct {
	CountMin int
	CountMax int
	Chance   float32

	PositionMagnitudeMin float32
	PositionMagnitudeMax float32

	VelocityOffsetMin mgl32.Vec3
	VelocityOffsetMax mgl32.Vec3

	Model                VelocityModel
	VelocityMagnitudeMin float32
	VelocityMagnitudeMax float32
	// SpreadAngleMax is the NormalCone half-angle in degrees.
	SpreadAngleMax float32

	InheritedVelocityMultiplier float32

	FinalVelocityMin float32
	FinalVelocityMax float32

	// MaxLatency is in solver seconds.
	MaxLatency float64

	BurstChance     float32
	BurstMultiplier float32

	DebugColor DebugColor
	// FetchMaterials enables the material lookup for friction, restitution,
	// density and color.
	FetchMaterials bool
}

func DefaultConfig() Config {
	return Config{
		CountMin:                    1,
		CountMax:                    1,
		Chance:                      1,
		VelocityMagnitudeMin:        1,
		VelocityMagnitudeMax:        2,
		SpreadAngleMax:              30,
		InheritedVelocityMultiplier: 1,
		FinalVelocityMin:            -1,
		FinalVelocityMax:            -1,
		MaxLatency:                  1,
		BurstChance:                 0.2,
		BurstMultiplier:             1.25,
	}
}

// Palette is the fixed debug color table.
var Palette = [...]mgl32.Vec4{
	{1, 1, 1, 1},             // white
	{1, 0, 0, 1},             // red
	{0, 1, 0, 1},             // lime
	{0, 0, 1, 1},             // blue
	{1, 1, 0, 1},             // yellow
	{0, 1, 1, 1},             // cyan
	{1, 0, 1, 1},             // magenta
	{0.75, 0.75, 0.75, 1},    // silver
	{0.5, 0.5, 0.5, 1},       // gray
	{0.5, 0, 0, 1},           // maroon
	{0.5, 0.5, 0, 1},         // olive
	{0, 0.5, 0, 1},           // green
	{0.5, 0, 0.5, 1},         // purple
	{0, 0.5, 0.5, 1},         // teal
	{0, 0, 0.5, 1},           // navy
	{1, 165.0 / 255, 0.5, 1}, // orange
	{1, 215.0 / 255, 0.5, 1}, // gold
	{154.0 / 255, 205.0 / 255, 50.0 / 255, 1},  // yellow green
	{127.0 / 255, 255.0 / 255, 212.0 / 255, 1}, // aquamarine
}
