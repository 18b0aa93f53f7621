package instance

import (
	"time"

	"debrisfx/internal/sim/frame"
)

// Metrics is a thread-safe read-only view of an instance. It is updated from
// the producer goroutine and read from HTTP handlers and tests.
type Metrics struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Tick  uint64 `json:"tick"`
	Phase string `json:"phase"`

	LastSpawnedPointID int64   `json:"last_spawned_point_id"`
	LastSpawnTime      float64 `json:"last_spawn_time"`
	SolverTime         float64 `json:"solver_time"`

	LastSeeds  int     `json:"last_seeds"`
	TotalSeeds uint64  `json:"total_seeds"`
	Aborted    uint64  `json:"aborted"`
	LastError  string  `json:"last_error,omitempty"`
	StepMS     float64 `json:"step_ms"`
	Solvers    int     `json:"solvers"`
	Destroyed  bool    `json:"destroyed"`
}

func (in *Instance) Metrics() Metrics {
	if in == nil {
		return Metrics{}
	}
	m, _ := in.metrics.Load().(Metrics)
	return m
}

func (in *Instance) publishMetrics(res StepResult, err error, took time.Duration) {
	m := in.Metrics()
	st := in.tracker.State()
	m.Tick = res.Tick
	m.Phase = frame.Idle.String()
	if res.Armed && err == nil {
		m.Phase = frame.Armed.String()
		m.LastSeeds = res.Seeds
		m.TotalSeeds += uint64(res.Seeds)
	}
	if err != nil {
		m.Aborted++
		m.LastError = err.Error()
	}
	m.LastSpawnedPointID = st.LastSpawnedPointID
	m.LastSpawnTime = st.LastSpawnTime
	m.SolverTime = st.SolverTime
	m.StepMS = float64(took.Microseconds()) / 1000
	m.Solvers = len(in.solvers)
	in.metrics.Store(m)
}
