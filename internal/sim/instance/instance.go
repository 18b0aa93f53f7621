package instance

import (
	"io"
	"log"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/filter"
	"debrisfx/internal/sim/frame"
	"debrisfx/internal/sim/order"
	"debrisfx/internal/sim/publish"
	"debrisfx/internal/sim/spatialhash"
	"debrisfx/internal/sim/spawn"
	"debrisfx/internal/sim/stats"
)

// Solver is one physics source bound to an instance.
type Solver interface {
	SolverTime() float64
	EventEnabled(kind event.Kind) bool
	Events(kind event.Kind) event.Batch
}

type Config struct {
	Name string
	Kind event.Kind

	TickRateHz           int
	DataProcessFrequency float64
	MaxSpawnPerTick      int
	DoSpawn              bool
	ExtendedLookup       bool

	Filter      filter.Config
	Sort        order.Key
	SpatialHash spatialhash.Config
	Spawn       spawn.Config
}

func DefaultConfig() Config {
	return Config{
		Name:                 "default",
		Kind:                 event.KindCollision,
		TickRateHz:           60,
		DataProcessFrequency: 10,
		MaxSpawnPerTick:      50,
		DoSpawn:              true,
		Filter:               filter.DefaultConfig(),
		SpatialHash:          spatialhash.DefaultConfig(),
		Spawn:                spawn.DefaultConfig(),
	}
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

// TickLogEntry summarizes one armed or aborted tick.
type TickLogEntry struct {
	Instance           string           `json:"instance"`
	Name               string           `json:"name"`
	Tick               uint64           `json:"tick"`
	SolverTime         float64          `json:"solver_time"`
	LastSpawnedPointID int64            `json:"last_spawned_point_id"`
	Seeds              int              `json:"seeds"`
	Counters           map[string]int64 `json:"counters,omitempty"`
	Error              string           `json:"error,omitempty"`
}

type Options struct {
	// ID defaults to a random UUID.
	ID     uuid.UUID
	Logger *log.Logger
	// Seed for the instance's random stream; 0 picks one from the clock.
	Seed     int64
	Lookup   event.Lookup
	Observer stats.Observer
	Queue    *publish.Queue
	// TickLoggers receive one entry per armed or aborted tick. Nil entries
	// are skipped.
	TickLoggers []TickLogger
}

// Instance runs the event-to-seed pipeline for one emitter. All pipeline
// state must be accessed only from the goroutine calling StepOnce or Run.
type Instance struct {
	id     uuid.UUID
	cfg    Config
	logger *log.Logger

	solvers  []Solver
	rebind   chan []Solver
	stop     chan struct{}
	stopOnce sync.Once

	tracker    *frame.Tracker
	normalizer event.Normalizer
	decimator  spatialhash.Decimator
	synth      *spawn.Synthesizer
	rng        *rand.Rand
	seeds      spawn.Seeds

	pub     *publish.Publisher
	tally   stats.Tally
	obs     stats.Observer
	loggers []TickLogger

	tick      uint64
	destroyed bool

	metrics atomic.Value
}

func New(cfg Config, opts Options) *Instance {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	q := opts.Queue
	if q == nil {
		q = publish.NewQueue()
	}
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 60
	}

	in := &Instance{
		id:      id,
		cfg:     cfg,
		logger:  logger,
		rebind:  make(chan []Solver, 1),
		stop:    make(chan struct{}),
		tracker: frame.NewTracker(cfg.DataProcessFrequency),
		rng:     rand.New(rand.NewSource(seed)),
		pub:     publish.NewPublisher(id, q),
	}
	in.obs = stats.Multi{&in.tally, opts.Observer}
	in.normalizer = event.Normalizer{
		ExtendedLookup: cfg.ExtendedLookup,
		Lookup:         opts.Lookup,
		Stats:          in.obs,
	}
	in.synth = spawn.NewSynthesizer(in.rng, opts.Lookup, in.obs)
	for _, l := range opts.TickLoggers {
		if l != nil {
			in.loggers = append(in.loggers, l)
		}
	}
	in.metrics.Store(Metrics{ID: id.String(), Name: cfg.Name, Kind: cfg.Kind.String(), Phase: frame.Idle.String(), LastSpawnedPointID: -1, LastSpawnTime: -1})
	return in
}

func (in *Instance) ID() uuid.UUID  { return in.id }
func (in *Instance) Config() Config { return in.cfg }

// FrameState returns the tracker's current state. Producer goroutine only.
func (in *Instance) FrameState() frame.State { return in.tracker.State() }

// Bind replaces the solver list and resets the point-ID counter. Producer
// goroutine only; use Rebind while Run is active.
func (in *Instance) Bind(solvers ...Solver) {
	in.solvers = append(in.solvers[:0:0], solvers...)
	in.tracker.Reset()
	in.logger.Printf("instance %s bound to %d solver(s)", in.cfg.Name, len(solvers))
}

// Rebind hands a new solver list to the Run loop. A pending rebind that has
// not been applied yet is replaced.
func (in *Instance) Rebind(solvers ...Solver) {
	s := append([]Solver(nil), solvers...)
	select {
	case in.rebind <- s:
		return
	default:
	}
	select {
	case <-in.rebind:
	default:
	}
	select {
	case in.rebind <- s:
	default:
	}
}

// Stop makes Run return after tearing the instance down. It is safe to call
// more than once and from any goroutine.
func (in *Instance) Stop() { in.stopOnce.Do(func() { close(in.stop) }) }
