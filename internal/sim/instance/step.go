package instance

import (
	"context"
	"fmt"
	"time"

	"debrisfx/internal/sim/filter"
	"debrisfx/internal/sim/order"
	"debrisfx/internal/sim/publish"
	"debrisfx/internal/sim/stats"
)

// StepResult describes what one tick did.
type StepResult struct {
	Tick  uint64
	Armed bool
	// Base is the last point ID handed out before this tick's seeds.
	Base  int64
	Seeds int
}

// StepOnce runs a single tick. An error aborts the tick: nothing is published
// and the frame state keeps its pre-tick values.
func (in *Instance) StepOnce() (StepResult, error) {
	if in.destroyed {
		return StepResult{Tick: in.tick}, publish.ErrTornDown
	}
	start := time.Now()
	res, err := in.step()
	in.publishMetrics(res, err, time.Since(start))
	return res, err
}

func (in *Instance) step() (StepResult, error) {
	in.tick++
	res := StepResult{Tick: in.tick}
	if len(in.solvers) == 0 {
		in.obs.OnCounter(stats.TicksIdle, 1)
		in.tally.Take()
		return res, nil
	}

	tok, armed := in.tracker.Begin(in.solvers[0].SolverTime())
	if !armed {
		in.obs.OnCounter(stats.TicksIdle, 1)
		in.tally.Take()
		return res, nil
	}
	res.Armed = true
	in.obs.OnCounter(stats.TicksArmed, 1)

	in.seeds.Truncate(0)
	produced := 0
	batchTime := -1.0
	for i, s := range in.solvers {
		n, ts, err := in.runSolver(int32(i), s, tok.SolverTime)
		if err != nil {
			in.seeds.Truncate(0)
			in.obs.OnCounter(stats.PipelineAborted, 1)
			err = fmt.Errorf("instance %s solver %d: %w", in.cfg.Name, i, err)
			in.logger.Printf("tick %d aborted: %v", in.tick, err)
			in.writeTickLog(TickLogEntry{
				Instance:           in.id.String(),
				Name:               in.cfg.Name,
				Tick:               in.tick,
				SolverTime:         tok.SolverTime,
				LastSpawnedPointID: tok.Base,
				Counters:           in.tally.Take(),
				Error:              err.Error(),
			})
			return res, err
		}
		produced += n
		if ts > batchTime {
			batchTime = ts
		}
	}

	in.tracker.Commit(tok, produced, batchTime)
	if _, err := in.pub.Publish(&in.seeds, in.tick, tok.Base, tok.SolverTime); err != nil {
		return res, err
	}
	res.Base = tok.Base
	res.Seeds = produced

	in.writeTickLog(TickLogEntry{
		Instance:           in.id.String(),
		Name:               in.cfg.Name,
		Tick:               in.tick,
		SolverTime:         tok.SolverTime,
		LastSpawnedPointID: tok.Base,
		Seeds:              produced,
		Counters:           in.tally.Take(),
	})
	return res, nil
}

// runSolver pushes one solver's batch through normalize, filter, sort,
// decimate and synthesize. It returns the seeds added and the batch timestamp.
func (in *Instance) runSolver(solverID int32, s Solver, frameTime float64) (int, float64, error) {
	cfg := &in.cfg
	if !cfg.DoSpawn || cfg.MaxSpawnPerTick <= 0 {
		return 0, -1, nil
	}
	if !s.EventEnabled(cfg.Kind) {
		return 0, -1, nil
	}
	solverTime := s.SolverTime()
	if solverTime <= 0 {
		return 0, -1, nil
	}
	batch := s.Events(cfg.Kind)
	if batch.Kind != cfg.Kind || batch.Len() == 0 {
		return 0, -1, nil
	}

	events := in.normalizer.Normalize(batch)
	total := len(events)
	events = filter.Apply(events, cfg.Filter, solverTime)
	if dropped := total - len(events); dropped > 0 {
		in.obs.OnCounter(stats.EventsFiltered, int64(dropped))
	}
	order.Sort(events, cfg.Sort, in.rng)
	selected, err := in.decimator.Decimate(events, cfg.SpatialHash, cfg.MaxSpawnPerTick)
	if err != nil {
		return 0, batch.Timestamp, err
	}
	if len(selected) > 0 {
		in.obs.OnCounter(stats.EventsSelected, int64(len(selected)))
	}
	n := in.synth.Synthesize(&in.seeds, selected, cfg.Spawn, frameTime, batch.Timestamp, solverID)
	return n, batch.Timestamp, nil
}

func (in *Instance) writeTickLog(e TickLogEntry) {
	for _, l := range in.loggers {
		if err := l.WriteTick(e); err != nil {
			in.logger.Printf("tick log: %v", err)
		}
	}
}

// Destroy enqueues the teardown behind every published snapshot. The instance
// publishes nothing afterwards.
func (in *Instance) Destroy() {
	if in.destroyed {
		return
	}
	in.destroyed = true
	if err := in.pub.Teardown(); err != nil {
		in.logger.Printf("teardown %s: %v", in.cfg.Name, err)
	}
	m := in.Metrics()
	m.Destroyed = true
	in.metrics.Store(m)
}

// Run steps the instance at the configured tick rate until ctx is done or Stop
// is called, then destroys it.
func (in *Instance) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(in.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer in.Destroy()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-in.stop:
			return nil
		case solvers := <-in.rebind:
			in.Bind(solvers...)
		case <-ticker.C:
			// Aborted ticks are already logged and counted.
			_, _ = in.StepOnce()
		}
	}
}
