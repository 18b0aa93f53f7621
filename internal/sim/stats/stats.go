package stats

import (
	"sort"
	"sync"
)

// Counter names emitted by the pipeline.
const (
	EventsTotal     = "events_total"
	EventsFiltered  = "events_filtered"
	EventsSelected  = "events_selected"
	EventsStale     = "events_stale"
	SeedsSpawned    = "seeds_spawned"
	PipelineAborted = "pipeline_aborted"
	TicksArmed      = "ticks_armed"
	TicksIdle       = "ticks_idle"
)

// Observer receives counter increments. Implementations used across goroutines
// must synchronize internally.
type Observer interface {
	OnCounter(name string, delta int64)
}

type Nop struct{}

func (Nop) OnCounter(string, int64) {}

// Func adapts a plain function to an Observer.
type Func func(name string, delta int64)

func (f Func) OnCounter(name string, delta int64) { f(name, delta) }

// Multi fans out to every non-nil observer in order.
type Multi []Observer

func (m Multi) OnCounter(name string, delta int64) {
	for _, o := range m {
		if o != nil {
			o.OnCounter(name, delta)
		}
	}
}

// OrNop returns o, or Nop when o is nil.
func OrNop(o Observer) Observer {
	if o == nil {
		return Nop{}
	}
	return o
}

// Counters is a goroutine-safe running total per counter name.
type Counters struct {
	mu sync.Mutex
	m  map[string]int64
}

func NewCounters() *Counters {
	return &Counters{m: map[string]int64{}}
}

func (c *Counters) OnCounter(name string, delta int64) {
	c.mu.Lock()
	c.m[name] += delta
	c.mu.Unlock()
}

func (c *Counters) Get(name string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m[name]
}

// Snapshot copies the current totals.
func (c *Counters) Snapshot() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}

// Names returns the counter names in sorted order.
func (c *Counters) Names() []string {
	c.mu.Lock()
	names := make([]string, 0, len(c.m))
	for k := range c.m {
		names = append(names, k)
	}
	c.mu.Unlock()
	sort.Strings(names)
	return names
}

// Tally accumulates one tick's counters. It is not goroutine-safe and is meant
// to be owned by a single producer loop.
type Tally struct {
	m map[string]int64
}

func (t *Tally) OnCounter(name string, delta int64) {
	if t.m == nil {
		t.m = map[string]int64{}
	}
	t.m[name] += delta
}

func (t *Tally) Get(name string) int64 { return t.m[name] }

// Take returns the accumulated counters and clears the tally.
func (t *Tally) Take() map[string]int64 {
	out := t.m
	t.m = nil
	if out == nil {
		out = map[string]int64{}
	}
	return out
}
