package source

import (
	"context"
	"sync"
	"time"

	"debrisfx/internal/sim/event"
)

// Next produces the following frame. ok is false once the source is exhausted.
type Next func() (f Frame, ok bool)

// Feed exposes the current frame of a source as a solver. Advance moves to the
// next frame and may run on a different goroutine than the readers.
type Feed struct {
	name string
	next Next

	mu       sync.RWMutex
	cur      Frame
	advanced uint64
	done     bool
}

func NewFeed(name string, next Next) *Feed {
	return &Feed{name: name, next: next}
}

func (f *Feed) Name() string { return f.name }

// Advance loads the next frame. Once the source is exhausted the solver time
// stays put and no further events are reported.
func (f *Feed) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return false
	}
	fr, ok := f.next()
	if !ok {
		f.done = true
		f.cur = Frame{Index: f.cur.Index, SolverTime: f.cur.SolverTime, Enabled: f.cur.Enabled}
		return false
	}
	f.cur = fr
	f.advanced++
	return true
}

func (f *Feed) Done() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.done
}

// Frames returns how many frames have been loaded.
func (f *Feed) Frames() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.advanced
}

func (f *Feed) SolverTime() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.SolverTime
}

func (f *Feed) EventEnabled(kind event.Kind) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.KindEnabled(kind)
}

func (f *Feed) Events(kind event.Kind) event.Batch {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.cur.Batch(kind)
}

// Run advances the feed at hz frames per second until ctx is done or the
// source is exhausted.
func (f *Feed) Run(ctx context.Context, hz float64) error {
	if hz <= 0 {
		hz = 30
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / hz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !f.Advance() {
				return nil
			}
		}
	}
}

// Frames replays a fixed frame list. With loop set the list restarts and solver
// time keeps increasing across passes.
func Frames(frames []Frame, loop bool) Next {
	i := 0
	var offset float64
	var index uint64
	return func() (Frame, bool) {
		if len(frames) == 0 {
			return Frame{}, false
		}
		if i == len(frames) {
			if !loop {
				return Frame{}, false
			}
			last := frames[len(frames)-1].SolverTime
			step := last
			if len(frames) > 1 {
				step = last - frames[len(frames)-2].SolverTime
			}
			if step <= 0 {
				step = 1
			}
			offset += last + step
			i = 0
		}
		fr := frames[i]
		fr.SolverTime += offset
		fr.Index = index
		i++
		index++
		return fr, true
	}
}
