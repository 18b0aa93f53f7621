package filter

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
)

// Range is a pair of sign-encoded bounds: a bound is active only when it is
// positive. {-1, -1} places no constraint.
type Range struct {
	Min float32
	Max float32
}

func Unbounded() Range { return Range{Min: -1, Max: -1} }

func (r Range) MinActive() bool { return r.Min > 0 }
func (r Range) MaxActive() bool { return r.Max > 0 }
func (r Range) Active() bool    { return r.MinActive() || r.MaxActive() }

// Pass reports whether v satisfies the active bounds.
func (r Range) Pass(v float32) bool {
	switch {
	case r.MinActive() && r.MaxActive():
		return v >= r.Min && v <= r.Max
	case r.MinActive():
		return v >= r.Min
	case r.MaxActive():
		return v <= r.Max
	}
	return true
}

type AxisMode uint8

const (
	AxisNone AxisMode = iota
	AxisMin
	AxisMax
	AxisMinMax
)

func ParseAxisMode(s string) (AxisMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AxisNone, nil
	case "min":
		return AxisMin, nil
	case "max":
		return AxisMax, nil
	case "minmax", "min_max":
		return AxisMinMax, nil
	}
	return AxisNone, fmt.Errorf("unknown axis mode %q", s)
}

type LocationMode uint8

const (
	Inclusive LocationMode = iota
	Exclusive
)

func ParseLocationMode(s string) (LocationMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inclusive":
		return Inclusive, nil
	case "exclusive":
		return Exclusive, nil
	}
	return Inclusive, fmt.Errorf("unknown location mode %q", s)
}

// Location constrains events per axis against Min and Max.
//
// Inclusive keeps events strictly inside the active bounds: an AxisMin axis
// drops x <= Min, AxisMax drops x >= Max, AxisMinMax drops either. Exclusive
// drops exactly what Inclusive keeps.
type Location struct {
	Mode LocationMode
	Axes [3]AxisMode
	Min  mgl32.Vec3
	Max  mgl32.Vec3
}

func (l Location) Active() bool {
	return l.Axes[0] != AxisNone || l.Axes[1] != AxisNone || l.Axes[2] != AxisNone
}

func (l Location) Pass(p mgl32.Vec3) bool {
	for axis := 0; axis < 3; axis++ {
		mode := l.Axes[axis]
		if mode == AxisNone {
			continue
		}
		x, lo, hi := p[axis], l.Min[axis], l.Max[axis]
		var fail bool
		if l.Mode == Inclusive {
			switch mode {
			case AxisMin:
				fail = x <= lo
			case AxisMax:
				fail = x >= hi
			case AxisMinMax:
				fail = x <= lo || x >= hi
			}
		} else {
			switch mode {
			case AxisMin:
				fail = x > lo
			case AxisMax:
				fail = x < hi
			case AxisMinMax:
				fail = x > lo && x < hi
			}
		}
		if fail {
			return false
		}
	}
	return true
}

type Config struct {
	Impulse    Range
	Speed      Range
	Mass       Range
	ExtentMin  Range
	ExtentMax  Range
	Volume     Range
	SolverTime Range

	// SurfaceType of -1 accepts any surface.
	SurfaceType int32
	// Materials, when non-empty, restricts breakings to these physical
	// material names. Other kinds ignore it.
	Materials []string

	Location Location
}

func DefaultConfig() Config {
	return Config{
		Impulse:     Unbounded(),
		Speed:       Unbounded(),
		Mass:        Unbounded(),
		ExtentMin:   Unbounded(),
		ExtentMax:   Unbounded(),
		Volume:      Unbounded(),
		SolverTime:  Unbounded(),
		SurfaceType: -1,
	}
}

// Active reports whether any predicate can drop an event.
func (c *Config) Active() bool {
	return len(c.Materials) > 0 ||
		c.Impulse.Active() || c.Speed.Active() || c.Mass.Active() ||
		c.ExtentMin.Active() || c.ExtentMax.Active() || c.Volume.Active() ||
		c.SolverTime.Active() ||
		c.SurfaceType >= 0 ||
		c.Location.Active()
}

// Apply returns the events that pass every active predicate, in their original
// order. With no active predicate the input slice is returned as is. Otherwise
// the survivors are compacted into the front of events.
func Apply(events []event.Event, cfg Config, solverTime float64) []event.Event {
	if !cfg.Active() {
		return events
	}
	out := events[:0]
	for i := range events {
		if keep(&events[i], &cfg, solverTime) {
			out = append(out, events[i])
		}
	}
	return out
}

func keep(e *event.Event, c *Config, solverTime float64) bool {
	if len(c.Materials) > 0 && e.Kind == event.KindBreaking && !containsName(c.Materials, e.Body.PhysicalMaterialName) {
		return false
	}
	if e.Kind == event.KindCollision && c.Impulse.Active() && !c.Impulse.Pass(e.Impulse()) {
		return false
	}
	if c.Speed.Active() && !c.Speed.Pass(e.Speed()) {
		return false
	}
	if c.Mass.Active() && !c.Mass.Pass(e.Mass()) {
		return false
	}
	if c.ExtentMin.Active() && !c.ExtentMin.Pass(e.Geometry.ExtentMin) {
		return false
	}
	if c.ExtentMax.Active() && !c.ExtentMax.Pass(e.Geometry.ExtentMax) {
		return false
	}
	if c.Volume.Active() && !c.Volume.Pass(e.Geometry.Volume) {
		return false
	}
	if c.SolverTime.Active() && !c.SolverTime.Pass(float32(solverTime)) {
		return false
	}
	if c.SurfaceType >= 0 && e.Geometry.SurfaceType != c.SurfaceType {
		return false
	}
	if c.Location.Active() && !c.Location.Pass(e.Location) {
		return false
	}
	return true
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
