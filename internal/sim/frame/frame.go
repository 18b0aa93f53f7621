package frame

// State is the per-instance bookkeeping carried between ticks.
type State struct {
	LastSpawnedPointID            int64
	LastSpawnTime                 float64
	SolverTime                    float64
	TimestampOfLastProcessedBatch float64
}

func Initial() State {
	return State{
		LastSpawnedPointID:            -1,
		LastSpawnTime:                 -1,
		TimestampOfLastProcessedBatch: -1,
	}
}

type Phase uint8

const (
	Idle Phase = iota
	Armed
)

func (p Phase) String() string {
	if p == Armed {
		return "armed"
	}
	return "idle"
}

// Token is handed out by Begin for an armed tick. Base is the point ID that
// precedes the tick's first seed.
type Token struct {
	SolverTime float64
	Base       int64
}

// FirstPointID is the ID of the tick's first seed.
func (t Token) FirstPointID() int64 { return t.Base + 1 }

// Tracker decides which ticks run the pipeline and owns the point-ID counter.
// It is not goroutine-safe.
type Tracker struct {
	state     State
	frequency float64
	phase     Phase
}

func NewTracker(dataProcessFrequency float64) *Tracker {
	t := &Tracker{}
	t.SetFrequency(dataProcessFrequency)
	t.Reset()
	return t
}

// SetFrequency sets how many times per solver second a tick may arm. Values
// below 1 are raised to 1.
func (t *Tracker) SetFrequency(f float64) {
	if f < 1 {
		f = 1
	}
	t.frequency = f
}

func (t *Tracker) Reset() {
	t.state = Initial()
	t.phase = Idle
}

func (t *Tracker) State() State       { return t.state }
func (t *Tracker) Phase() Phase       { return t.phase }
func (t *Tracker) Frequency() float64 { return t.frequency }

// Begin reports whether solverTime arms a new tick. It never mutates state;
// the tick only takes effect through Commit.
func (t *Tracker) Begin(solverTime float64) (Token, bool) {
	last := t.state.LastSpawnTime
	if solverTime == last || solverTime-last < 1/t.frequency {
		t.phase = Idle
		return Token{}, false
	}
	return Token{SolverTime: solverTime, Base: t.state.LastSpawnedPointID}, true
}

// Commit records a completed armed tick that produced the given number of
// seeds from batches stamped up to batchTime.
func (t *Tracker) Commit(tok Token, produced int, batchTime float64) {
	t.state.LastSpawnTime = tok.SolverTime
	t.state.SolverTime = tok.SolverTime
	t.state.LastSpawnedPointID = tok.Base + int64(produced)
	if batchTime > t.state.TimestampOfLastProcessedBatch {
		t.state.TimestampOfLastProcessedBatch = batchTime
	}
	t.phase = Armed
}
