package main

import (
	"io"
	"log"
	"path/filepath"
	"testing"

	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/source"
	"debrisfx/internal/sim/stats"
	"debrisfx/internal/sim/tuning"
)

func writeScene(t *testing.T, path string, frames int) {
	t.Helper()
	scene := source.NewScene(source.SceneConfig{FrameHz: 30, EventsPerFrame: 12, Extent: 20, Seed: 3})
	w, err := recording.Create(path, recording.Header{Source: "scene", FrameHz: 30, Seed: 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i < frames; i++ {
		fr, _ := scene.Next()
		if err := w.WriteFrame(fr); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func loadDefaults(t *testing.T) (tuning.Tuning, *catalogs.Catalog) {
	t.Helper()
	tune, err := tuning.Load("")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	cat, err := catalogs.Load("")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return tune, cat
}

func TestReplayIsDeterministicAndVerifies(t *testing.T) {
	dir := t.TempDir()
	rec := filepath.Join(dir, "scene.rec.zst")
	writeScene(t, rec, 60)
	tune, cat := loadDefaults(t)
	logger := log.New(io.Discard, "", 0)

	first, err := run(options{Recording: rec, Seed: 5, TicksOut: filepath.Join(dir, "out")}, tune, cat, logger)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Frames != 60 || len(first.Instances) != 1 {
		t.Fatalf("summary: %+v", first)
	}
	in := first.Instances[0]
	if in.Ticks != 60 || in.Seeds == 0 || in.Aborted != 0 {
		t.Fatalf("instance summary: %+v", in)
	}
	if in.LastSpawnedPointID != int64(in.Seeds)-1 {
		t.Fatalf("last point id %d after %d seeds", in.LastSpawnedPointID, in.Seeds)
	}
	// 60 frames at 30 Hz with a 10 Hz process frequency.
	if armed := in.Counters[stats.TicksArmed]; armed < 15 || armed > 21 {
		t.Fatalf("ticks_armed=%d", armed)
	}

	second, err := run(options{Recording: rec, Seed: 5, Verify: filepath.Join(dir, "out", "ticks")}, tune, cat, logger)
	if err != nil {
		t.Fatalf("verified run: %v", err)
	}
	if second.Verified == 0 || second.Verified != int(in.Counters[stats.TicksArmed]) {
		t.Fatalf("verified=%d armed=%d", second.Verified, in.Counters[stats.TicksArmed])
	}
	if second.Instances[0].Seeds != in.Seeds {
		t.Fatalf("seeds differ: %d vs %d", second.Instances[0].Seeds, in.Seeds)
	}
}

func TestReplayMaxFrames(t *testing.T) {
	dir := t.TempDir()
	rec := filepath.Join(dir, "scene.rec.zst")
	writeScene(t, rec, 30)
	tune, cat := loadDefaults(t)

	sum, err := run(options{Recording: rec, MaxFrames: 10}, tune, cat, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Frames != 10 || sum.Instances[0].Ticks != 10 {
		t.Fatalf("summary: %+v", sum)
	}
}

func TestReplayVerifyMissingDir(t *testing.T) {
	dir := t.TempDir()
	rec := filepath.Join(dir, "scene.rec.zst")
	writeScene(t, rec, 5)
	tune, cat := loadDefaults(t)
	if _, err := run(options{Recording: rec, Verify: filepath.Join(dir, "nope")}, tune, cat, log.New(io.Discard, "", 0)); err == nil {
		t.Fatalf("expected a verify error")
	}
}
