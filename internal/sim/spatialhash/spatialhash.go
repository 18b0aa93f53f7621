package spatialhash

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"debrisfx/internal/sim/event"
)

var ErrCellIndexOutOfRange = errors.New("spatialhash: cell index out of range")

// Grid extent limits per axis, inclusive.
const (
	MinGridExtent = 100
	MaxGridExtent = 1e8
)

// maxCells keeps flattened indices inside int.
const maxCells = 1 << 40

type Config struct {
	Enabled          bool
	VolumeMin        mgl32.Vec3
	VolumeMax        mgl32.Vec3
	CellSize         mgl32.Vec3
	MaxEventsPerCell int
}

func DefaultConfig() Config {
	return Config{
		VolumeMin:        mgl32.Vec3{-100, -100, -100},
		VolumeMax:        mgl32.Vec3{100, 100, 100},
		CellSize:         mgl32.Vec3{10, 10, 10},
		MaxEventsPerCell: 1,
	}
}

// Grid is the cell-aligned box derived from a Config.
type Grid struct {
	Min   [3]float64
	Max   [3]float64
	Cell  [3]float64
	Count [3]int
}

func (g Grid) Cells() int { return g.Count[0] * g.Count[1] * g.Count[2] }

// Grid expands the volume outward, keeping it centered, until every axis is a
// whole number of cells. ok is false when the grid is not usable.
func (c Config) Grid() (Grid, bool) {
	var g Grid
	if !c.Enabled {
		return g, false
	}
	cells := 1.0
	for a := 0; a < 3; a++ {
		lo, hi, cell := float64(c.VolumeMin[a]), float64(c.VolumeMax[a]), float64(c.CellSize[a])
		extent := hi - lo
		if extent < MinGridExtent || extent > MaxGridExtent || cell < 1 {
			return g, false
		}
		n := math.Ceil(extent / cell)
		d := (n*cell - extent) / 2
		g.Min[a] = lo - d
		g.Max[a] = hi + d
		g.Cell[a] = cell
		g.Count[a] = int(n)
		cells *= n
	}
	if cells > maxCells {
		return g, false
	}
	return g, true
}

// Index returns the flattened cell of p. ok is false when p is outside the box.
// Points on the max face fall into the last cell. A NaN coordinate has no cell
// and is reported as out of range.
func (g Grid) Index(p mgl32.Vec3) (idx int, ok bool, err error) {
	var ijk [3]int
	for a := 0; a < 3; a++ {
		x := float64(p[a])
		if math.IsNaN(x) {
			return 0, false, fmt.Errorf("%w: non-finite location %v", ErrCellIndexOutOfRange, p)
		}
		if x < g.Min[a] || x > g.Max[a] {
			return 0, false, nil
		}
		i := int((x - g.Min[a]) / g.Cell[a])
		if i == g.Count[a] {
			i--
		}
		ijk[a] = i
	}
	idx = ijk[0] + ijk[1]*g.Count[0] + ijk[2]*g.Count[0]*g.Count[1]
	if idx < 0 || idx >= g.Cells() {
		return 0, false, fmt.Errorf("%w: %d not in [0,%d) for %v", ErrCellIndexOutOfRange, idx, g.Cells(), p)
	}
	return idx, true, nil
}

// Decimator bounds a tick's events to a target count. Its buffers are reused
// between calls, so a returned slice is only valid until the next Decimate.
type Decimator struct {
	slotOf   map[int]int
	slots    [][]int
	selected []event.Event
	strided  []event.Event
}

// Decimate selects at most target events. With an eligible grid every event
// outside the box is dropped, each occupied cell contributes at most
// MaxEventsPerCell events in arrival order, and an oversize selection is
// stride-sampled down to exactly target. Without a grid the input is returned
// unchanged when it already fits and stride-sampled otherwise.
func (d *Decimator) Decimate(events []event.Event, cfg Config, target int) ([]event.Event, error) {
	if target <= 0 {
		return events[:0:0], nil
	}
	g, ok := cfg.Grid()
	if !ok || len(events) <= 1 {
		if len(events) <= target {
			return events, nil
		}
		d.strided = Stride(d.strided[:0], events, target)
		return d.strided, nil
	}

	if d.slotOf == nil {
		d.slotOf = map[int]int{}
	}
	clear(d.slotOf)
	for i := range d.slots {
		d.slots[i] = d.slots[i][:0]
	}
	used := 0
	perCell := cfg.MaxEventsPerCell
	for i := range events {
		idx, inside, err := g.Index(events[i].Location)
		if err != nil {
			return nil, err
		}
		if !inside {
			continue
		}
		slot, seen := d.slotOf[idx]
		if !seen {
			slot = used
			used++
			d.slotOf[idx] = slot
			if slot == len(d.slots) {
				d.slots = append(d.slots, nil)
			}
		}
		if len(d.slots[slot]) < perCell {
			d.slots[slot] = append(d.slots[slot], i)
		}
	}

	d.selected = d.selected[:0]
	for s := 0; s < used; s++ {
		for _, i := range d.slots[s] {
			d.selected = append(d.selected, events[i])
		}
	}
	if len(d.selected) <= target {
		return d.selected, nil
	}
	d.strided = Stride(d.strided[:0], d.selected, target)
	return d.strided, nil
}

// Stride appends exactly target elements of src to dst, picking
// src[floor(i*len(src)/target)] for i in [0,target). Requires target <= len(src).
func Stride(dst, src []event.Event, target int) []event.Event {
	n := len(src)
	for i := 0; i < target; i++ {
		dst = append(dst, src[i*n/target])
	}
	return dst
}
