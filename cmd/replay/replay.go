package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	persistlog "debrisfx/internal/persistence/log"
	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/publish"
	"debrisfx/internal/sim/source"
	"debrisfx/internal/sim/stats"
	"debrisfx/internal/sim/tuning"
)

type options struct {
	Recording string
	// MaxFrames stops early; 0 replays the whole recording.
	MaxFrames int
	// Seed overrides the tuning seed. Replays with the same seed produce the
	// same ticks.
	Seed int64
	// TicksOut, when set, receives a tick log of the replay.
	TicksOut string
	// Verify is a directory of ticks-*.jsonl.zst files to compare against.
	Verify string
}

type instanceSummary struct {
	Name               string           `json:"name"`
	Kind               string           `json:"kind"`
	Ticks              uint64           `json:"ticks"`
	Seeds              uint64           `json:"seeds"`
	Aborted            uint64           `json:"aborted"`
	LastSpawnedPointID int64            `json:"last_spawned_point_id"`
	Counters           map[string]int64 `json:"counters"`
}

type summary struct {
	Header    recording.Header  `json:"header"`
	Frames    int               `json:"frames"`
	Instances []instanceSummary `json:"instances"`
	Verified  int               `json:"verified,omitempty"`
}

type tickKey struct {
	name string
	tick uint64
}

// capture keeps the replay's tick entries for verification.
type capture struct {
	ticks map[tickKey]instance.TickLogEntry
}

func (c *capture) WriteTick(e instance.TickLogEntry) error {
	c.ticks[tickKey{e.Name, e.Tick}] = e
	return nil
}

// continuity checks that every instance's point ids continue across
// snapshots.
type continuity struct {
	next map[uuid.UUID]int64
	err  error
}

func (c *continuity) OnSnapshot(s *publish.Snapshot) {
	first, last, n := s.IDRange()
	if want, ok := c.next[s.Instance]; ok && n > 0 && first != want && c.err == nil {
		c.err = fmt.Errorf("instance %s tick %d: first point id %d, want %d", s.Instance, s.Tick, first, want)
	}
	if n > 0 {
		c.next[s.Instance] = last + 1
	}
}

func (c *continuity) OnTeardown(id uuid.UUID) { delete(c.next, id) }

// run pushes every recorded frame through each tuned instance as fast as
// possible. Every instance is bound to the recording regardless of the
// sources its tuning names.
func run(opts options, tune tuning.Tuning, cat *catalogs.Catalog, logger *log.Logger) (summary, error) {
	h, frames, err := recording.ReadAll(opts.Recording)
	if err != nil {
		return summary{}, fmt.Errorf("read recording: %w", err)
	}
	sum := summary{Header: h}
	feed := source.NewFeed(h.Source, source.Frames(frames, false))

	cfgs, err := tune.InstanceConfigs()
	if err != nil {
		return sum, err
	}

	seed := opts.Seed
	if seed == 0 {
		seed = tune.Seed
	}
	if seed == 0 {
		seed = 1
	}

	captured := &capture{ticks: map[tickKey]instance.TickLogEntry{}}
	loggers := []instance.TickLogger{captured}
	var tickLog *persistlog.TickLogger
	if opts.TicksOut != "" {
		tickLog = persistlog.NewTickLogger(opts.TicksOut)
		loggers = append(loggers, tickLog)
	}

	q := publish.NewQueue()
	cont := &continuity{next: map[uuid.UUID]int64{}}
	consumer := publish.NewConsumer(q, cont)

	type running struct {
		in       *instance.Instance
		counters *stats.Counters
	}
	var ins []running
	for i, cfg := range cfgs {
		counters := stats.NewCounters()
		in := instance.New(cfg, instance.Options{
			Logger:      logger,
			Seed:        seed + int64(i),
			Lookup:      cat,
			Observer:    counters,
			Queue:       q,
			TickLoggers: loggers,
		})
		in.Bind(feed)
		ins = append(ins, running{in: in, counters: counters})
	}

	for opts.MaxFrames == 0 || sum.Frames < opts.MaxFrames {
		if !feed.Advance() {
			break
		}
		sum.Frames++
		for _, r := range ins {
			// Aborted ticks are counted in the instance metrics.
			_, _ = r.in.StepOnce()
		}
		consumer.Pump()
	}
	for _, r := range ins {
		r.in.Destroy()
	}
	consumer.Pump()
	if tickLog != nil {
		if err := tickLog.Close(); err != nil {
			return sum, fmt.Errorf("close tick log: %w", err)
		}
	}
	if cont.err != nil {
		return sum, cont.err
	}

	for _, r := range ins {
		m := r.in.Metrics()
		sum.Instances = append(sum.Instances, instanceSummary{
			Name:               m.Name,
			Kind:               m.Kind,
			Ticks:              m.Tick,
			Seeds:              m.TotalSeeds,
			Aborted:            m.Aborted,
			LastSpawnedPointID: m.LastSpawnedPointID,
			Counters:           r.counters.Snapshot(),
		})
	}

	if opts.Verify != "" {
		n, err := verify(opts.Verify, captured.ticks)
		sum.Verified = n
		if err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// verify compares a recorded tick log against the replay's ticks, matching
// instances by name. It returns the number of ticks checked.
func verify(dir string, got map[tickKey]instance.TickLogEntry) (int, error) {
	files, err := listTickFiles(dir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, fmt.Errorf("no tick files found in %s", dir)
	}
	checked := 0
	for _, path := range files {
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var want instance.TickLogEntry
			if err := json.Unmarshal(line, &want); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
			}
			have, ok := got[tickKey{want.Name, want.Tick}]
			if !ok {
				return fmt.Errorf("instance %s tick %d: missing from replay", want.Name, want.Tick)
			}
			if have.Seeds != want.Seeds || have.LastSpawnedPointID != want.LastSpawnedPointID || have.Error != want.Error {
				return fmt.Errorf("instance %s tick %d: seeds=%d lsp=%d, recorded seeds=%d lsp=%d",
					want.Name, want.Tick, have.Seeds, have.LastSpawnedPointID, want.Seeds, want.LastSpawnedPointID)
			}
			checked++
			return nil
		})
		if err != nil {
			return checked, err
		}
	}
	return checked, nil
}

func listTickFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "ticks-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
