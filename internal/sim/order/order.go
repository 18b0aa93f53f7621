package order

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"debrisfx/internal/sim/event"
)

type Key uint8

const (
	None Key = iota
	MassDescending
	MassAscending
	RandomShuffle
)

func (k Key) String() string {
	switch k {
	case None:
		return "none"
	case MassDescending:
		return "mass_descending"
	case MassAscending:
		return "mass_ascending"
	case RandomShuffle:
		return "random_shuffle"
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

func ParseKey(s string) (Key, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "mass_descending":
		return MassDescending, nil
	case "mass_ascending":
		return MassAscending, nil
	case "random_shuffle", "shuffle":
		return RandomShuffle, nil
	}
	return None, fmt.Errorf("unknown sort key %q", s)
}

// Sort reorders events in place. Mass keys are stable so events of equal mass
// keep their arrival order. rng is only used by RandomShuffle.
func Sort(events []event.Event, key Key, rng *rand.Rand) {
	if len(events) < 2 {
		return
	}
	switch key {
	case MassDescending:
		sort.SliceStable(events, func(i, j int) bool { return events[i].Mass() > events[j].Mass() })
	case MassAscending:
		sort.SliceStable(events, func(i, j int) bool { return events[i].Mass() < events[j].Mass() })
	case RandomShuffle:
		rng.Shuffle(len(events), func(i, j int) { events[i], events[j] = events[j], events[i] })
	}
}
