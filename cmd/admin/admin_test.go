package main

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"debrisfx/internal/persistence/indexdb"
	persistlog "debrisfx/internal/persistence/log"
	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/source"
	"debrisfx/internal/sim/tuning"
)

func seedIndex(t *testing.T) (string, uuid.UUID) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "debris.sqlite")
	idx, err := indexdb.OpenSQLite(path, nil)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	id := uuid.New()
	idx.RecordInstance(id, "sparks", "collision")
	for tick := uint64(1); tick <= 3; tick++ {
		_ = idx.WriteTick(instance.TickLogEntry{
			Instance: id.String(), Name: "sparks", Tick: tick, Seeds: 4,
			Counters: map[string]int64{"seeds_spawned": 4, "events_total": 6},
		})
	}
	_ = idx.WriteTick(instance.TickLogEntry{Instance: id.String(), Name: "sparks", Tick: 4, Error: "cell index out of range"})
	tu, _ := tuning.Load("")
	if err := idx.UpsertTuning(tu, ""); err != nil {
		t.Fatalf("UpsertTuning: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path, id
}

func TestRunQuery(t *testing.T) {
	path, id := seedIndex(t)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	defer db.Close()

	var rows []any
	collect := func(v any) { rows = append(rows, v) }

	if err := runQuery(db, "instances", dbQuery{}, collect); err != nil {
		t.Fatalf("instances: %v", err)
	}
	if len(rows) != 1 || rows[0].(instanceRow).ID != id.String() {
		t.Fatalf("instances: %+v", rows)
	}

	rows = nil
	if err := runQuery(db, "ticks", dbQuery{Instance: "sparks", Limit: 2}, collect); err != nil {
		t.Fatalf("ticks: %v", err)
	}
	if len(rows) != 2 || rows[0].(tickRow).Tick != 4 || rows[1].(tickRow).Tick != 3 {
		t.Fatalf("ticks: %+v", rows)
	}

	rows = nil
	if err := runQuery(db, "errors", dbQuery{}, collect); err != nil {
		t.Fatalf("errors: %v", err)
	}
	if len(rows) != 1 || rows[0].(tickRow).Error == "" {
		t.Fatalf("errors: %+v", rows)
	}

	rows = nil
	if err := runQuery(db, "counters", dbQuery{Instance: "sparks"}, collect); err != nil {
		t.Fatalf("counters: %v", err)
	}
	totals := map[string]int64{}
	for _, r := range rows {
		c := r.(counterRow)
		totals[c.Counter] = c.Total
	}
	if totals["seeds_spawned"] != 12 || totals["events_total"] != 18 {
		t.Fatalf("counter totals: %v", totals)
	}

	rows = nil
	if err := runQuery(db, "tunings", dbQuery{}, collect); err != nil || len(rows) != 1 {
		t.Fatalf("tunings: %v %+v", err, rows)
	}

	if err := runQuery(db, "nope", dbQuery{}, collect); err != errUnknownQuery {
		t.Fatalf("unknown query: got %v", err)
	}
}

func TestReadTicksFilters(t *testing.T) {
	dataDir := t.TempDir()
	l := persistlog.NewTickLogger(dataDir)
	for tick := uint64(1); tick <= 5; tick++ {
		e := instance.TickLogEntry{Instance: "a-id", Name: "a", Tick: tick, Seeds: 1}
		if tick == 3 {
			e.Error = "boom"
		}
		_ = l.WriteTick(e)
		_ = l.WriteTick(instance.TickLogEntry{Instance: "b-id", Name: "b", Tick: tick})
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	dir := filepath.Join(dataDir, "ticks")

	var got []uint64
	n, err := readTicks(dir, tickFilter{Instance: "a", FromTick: 2, ToTick: 4}, func(e instance.TickLogEntry) { got = append(got, e.Tick) })
	if err != nil {
		t.Fatalf("readTicks: %v", err)
	}
	if n != 3 || len(got) != 3 || got[0] != 2 || got[2] != 4 {
		t.Fatalf("range filter: n=%d got=%v", n, got)
	}

	n, err = readTicks(dir, tickFilter{OnlyErrors: true}, func(instance.TickLogEntry) {})
	if err != nil || n != 1 {
		t.Fatalf("errors filter: n=%d err=%v", n, err)
	}
}

func TestSummarizeRecording(t *testing.T) {
	path := filepath.Join(t.TempDir(), "r.rec.zst")
	w, err := recording.Create(path, recording.Header{Source: "s", FrameHz: 10})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = w.WriteFrame(source.Frame{SolverTime: 0.1, Enabled: source.AllKinds, Collisions: make([]event.RawCollision, 3)})
	_ = w.WriteFrame(source.Frame{SolverTime: 0.2, Enabled: source.KindMask(event.KindCollision), Breakings: make([]event.RawBody, 2)})
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	sum, err := summarizeRecording(path)
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if sum.Frames != 2 || sum.Collisions != 3 || sum.Breakings != 2 || sum.FirstTime != 0.1 || sum.LastTime != 0.2 {
		t.Fatalf("summary: %+v", sum)
	}
	if sum.Disabled["breaking"] != 1 || sum.Disabled["trailing"] != 1 {
		t.Fatalf("disabled: %v", sum.Disabled)
	}
}
