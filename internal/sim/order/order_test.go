package order

import (
	"math/rand"
	"testing"

	"debrisfx/internal/sim/event"
)

func events(masses ...float32) []event.Event {
	out := make([]event.Event, len(masses))
	for i, m := range masses {
		out[i] = event.Event{Kind: event.KindBreaking, Proxy: int32(i), Body: event.Body{Mass: m}}
	}
	return out
}

func masses(es []event.Event) []float32 {
	out := make([]float32, len(es))
	for i := range es {
		out[i] = es[i].Mass()
	}
	return out
}

func TestSortMassKeys(t *testing.T) {
	es := events(3, 1, 2, 1)
	Sort(es, MassAscending, nil)
	if got := masses(es); got[0] != 1 || got[1] != 1 || got[2] != 2 || got[3] != 3 {
		t.Fatalf("ascending: got %v", got)
	}
	// Stable: the two mass-1 events keep arrival order.
	if es[0].Proxy != 1 || es[1].Proxy != 3 {
		t.Fatalf("ascending not stable: proxies %d,%d", es[0].Proxy, es[1].Proxy)
	}

	Sort(es, MassDescending, nil)
	if got := masses(es); got[0] != 3 || got[1] != 2 || got[3] != 1 {
		t.Fatalf("descending: got %v", got)
	}
}

func TestSortCollisionUsesLargerMass(t *testing.T) {
	es := []event.Event{
		{Kind: event.KindCollision, Proxy: 0, Collision: event.Collision{Mass1: 1, Mass2: 9}},
		{Kind: event.KindCollision, Proxy: 1, Collision: event.Collision{Mass1: 5, Mass2: 2}},
	}
	Sort(es, MassDescending, nil)
	if es[0].Proxy != 0 {
		t.Fatalf("expected the 9-mass collision first, got proxy %d", es[0].Proxy)
	}
}

func TestSortNoneLeavesSliceAlone(t *testing.T) {
	es := events(3, 1, 2)
	before := &es[0]
	Sort(es, None, nil)
	if &es[0] != before || es[0].Mass() != 3 || es[2].Mass() != 2 {
		t.Fatalf("none must be a no-op")
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	es := events(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	Sort(es, RandomShuffle, rand.New(rand.NewSource(42)))
	seen := map[int32]bool{}
	for _, e := range es {
		seen[e.Proxy] = true
	}
	if len(seen) != 10 {
		t.Fatalf("shuffle lost elements: %v", seen)
	}
}

func TestParseKey(t *testing.T) {
	if k, err := ParseKey("mass_descending"); err != nil || k != MassDescending {
		t.Fatalf("ParseKey: %v %v", k, err)
	}
	if _, err := ParseKey("by_color"); err == nil {
		t.Fatalf("expected error")
	}
}
