package publish

import (
	"github.com/google/uuid"

	"debrisfx/internal/sim/spawn"
)

// Snapshot is one armed tick's output for one instance. It is immutable once
// published; consumers may share it but must not modify it.
type Snapshot struct {
	Instance uuid.UUID
	Tick     uint64
	// LastSpawnedPointID precedes the first seed: seed i has point ID
	// LastSpawnedPointID+1+i.
	LastSpawnedPointID int64
	SolverTime         float64

	Seeds spawn.Seeds
}

func (s *Snapshot) Len() int { return s.Seeds.Len() }

// IDRange returns the first and last point IDs carried and their count. When
// count is 0 the range is empty and last < first.
func (s *Snapshot) IDRange() (first, last int64, count int) {
	count = s.Len()
	first = s.LastSpawnedPointID + 1
	last = s.LastSpawnedPointID + int64(count)
	return first, last, count
}

// Index maps a point ID to its position in the flat arrays.
func (s *Snapshot) Index(pointID int64) (int, bool) {
	i := pointID - (s.LastSpawnedPointID + 1)
	if i < 0 || i >= int64(s.Len()) {
		return 0, false
	}
	return int(i), true
}

func (s *Snapshot) Record(pointID int64) (spawn.Record, bool) {
	i, ok := s.Index(pointID)
	if !ok {
		return spawn.Record{}, false
	}
	return s.Seeds.At(i), true
}
