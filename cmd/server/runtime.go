package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"debrisfx/internal/persistence/indexdb"
	persistlog "debrisfx/internal/persistence/log"
	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/instance"
	"debrisfx/internal/sim/publish"
	"debrisfx/internal/sim/source"
	"debrisfx/internal/sim/stats"
	"debrisfx/internal/sim/tuning"
	"debrisfx/internal/transport/observer"
)

type runtimeConfig struct {
	DataDir   string
	DisableDB bool
	// DisableSeedLog skips the per-seed JSONL log, which grows fast.
	DisableSeedLog bool
}

type pacedFeed struct {
	feed *source.Feed
	hz   float64
}

type managedInstance struct {
	in       *instance.Instance
	counters *stats.Counters
}

// runtime owns every long-lived component of the server process.
type runtime struct {
	logger *log.Logger
	tune   tuning.Tuning
	cat    *catalogs.Catalog

	feeds     []pacedFeed
	queue     *publish.Queue
	consumer  *publish.Consumer
	instances []managedInstance

	observer *observer.Server
	index    *indexdb.SQLiteIndex
	tickLog  *persistlog.TickLogger
	seedLog  *persistlog.SeedLogger

	wg         sync.WaitGroup
	consumerWG sync.WaitGroup
	stopFeeds  context.CancelFunc
	stopPump   context.CancelFunc
}

// indexSink marks instances destroyed in the index once their teardown has
// been consumed.
type indexSink struct{ idx *indexdb.SQLiteIndex }

func (s indexSink) OnSnapshot(*publish.Snapshot) {}
func (s indexSink) OnTeardown(id uuid.UUID)      { s.idx.RecordTeardown(id) }

func buildRuntime(cfg runtimeConfig, tune tuning.Tuning, cat *catalogs.Catalog, logger *log.Logger) (*runtime, error) {
	rt := &runtime{
		logger:   logger,
		tune:     tune,
		cat:      cat,
		queue:    publish.NewQueue(),
		observer: observer.NewServer(logger),
		tickLog:  persistlog.NewTickLogger(cfg.DataDir),
	}

	if !cfg.DisableDB {
		idx, err := indexdb.OpenSQLite(filepath.Join(cfg.DataDir, "index", "debris.sqlite"), logger)
		if err != nil {
			_ = rt.tickLog.Close()
			return nil, fmt.Errorf("open index: %w", err)
		}
		rt.index = idx
		if err := idx.UpsertTuning(tune, cat.Digest); err != nil {
			logger.Printf("index: upsert tuning: %v", err)
		}
	}

	sinks := publish.MultiSink{rt.observer}
	if !cfg.DisableSeedLog {
		rt.seedLog = persistlog.NewSeedLogger(cfg.DataDir, logger)
		sinks = append(sinks, rt.seedLog)
	}
	if rt.index != nil {
		sinks = append(sinks, indexSink{idx: rt.index})
	}
	rt.consumer = publish.NewConsumer(rt.queue, sinks)

	byName := map[string]*source.Feed{}
	for _, sp := range tune.Sources {
		f, hz, err := openSource(sp, cat)
		if err != nil {
			rt.closeStores()
			return nil, err
		}
		byName[sp.Name] = f
		rt.feeds = append(rt.feeds, pacedFeed{feed: f, hz: hz})
	}

	cfgs, err := tune.InstanceConfigs()
	if err != nil {
		rt.closeStores()
		return nil, err
	}
	for i, icfg := range cfgs {
		ispec := tune.Instances[i]
		counters := stats.NewCounters()
		var seed int64
		if tune.Seed != 0 {
			seed = tune.Seed + int64(i)
		}
		loggers := []instance.TickLogger{rt.tickLog}
		if rt.index != nil {
			loggers = append(loggers, rt.index)
		}
		in := instance.New(icfg, instance.Options{
			Logger:      logger,
			Seed:        seed,
			Lookup:      cat,
			Observer:    counters,
			Queue:       rt.queue,
			TickLoggers: loggers,
		})
		solvers := make([]instance.Solver, 0, len(ispec.Solvers))
		for _, name := range ispec.Solvers {
			solvers = append(solvers, byName[name])
		}
		in.Bind(solvers...)

		kind := icfg.Kind.String()
		rt.observer.Track(in.ID(), icfg.Name, kind)
		if rt.index != nil {
			rt.index.RecordInstance(in.ID(), icfg.Name, kind)
		}
		rt.instances = append(rt.instances, managedInstance{in: in, counters: counters})
	}
	return rt, nil
}

// openSource builds the feed behind a named source and the rate it should be
// advanced at.
func openSource(sp tuning.SourceSpec, cat *catalogs.Catalog) (*source.Feed, float64, error) {
	if sp.Recording != "" {
		f, h, err := recording.OpenFeed(sp.Name, sp.Recording, sp.Loop)
		if err != nil {
			return nil, 0, fmt.Errorf("source %s: %w", sp.Name, err)
		}
		return f, h.FrameHz, nil
	}
	scene := source.NewScene(source.SceneConfig{
		FrameHz:        sp.Scene.FrameHz,
		EventsPerFrame: sp.Scene.EventsPerFrame,
		Extent:         sp.Scene.Extent,
		Seed:           sp.Scene.Seed,
		Proxies:        int32(len(cat.Bodies)),
		Materials:      cat.MaterialNames(),
	})
	return source.NewFeed(sp.Name, scene.Next), sp.Scene.FrameHz, nil
}

// start launches the feeds, the instance loops and the consumer.
func (rt *runtime) start(ctx context.Context) {
	feedCtx, stopFeeds := context.WithCancel(ctx)
	rt.stopFeeds = stopFeeds
	for _, f := range rt.feeds {
		f := f
		go func() {
			if err := f.feed.Run(feedCtx, f.hz); err != nil && err != context.Canceled {
				rt.logger.Printf("source %s stopped: %v", f.feed.Name(), err)
			}
		}()
	}

	for _, mi := range rt.instances {
		in := mi.in
		rt.wg.Add(1)
		go func() {
			defer rt.wg.Done()
			if err := in.Run(ctx); err != nil && err != context.Canceled {
				rt.logger.Printf("instance %s stopped: %v", in.Config().Name, err)
			}
		}()
	}

	pumpCtx, stopPump := context.WithCancel(context.Background())
	rt.stopPump = stopPump
	rt.consumerWG.Add(1)
	go func() {
		defer rt.consumerWG.Done()
		_ = rt.consumer.Run(pumpCtx)
	}()
}

// shutdown waits for every instance to tear down, lets the consumer drain the
// teardowns and closes the stores. If start was called, its ctx must already
// be done.
func (rt *runtime) shutdown() {
	rt.wg.Wait()
	if rt.stopFeeds != nil {
		rt.stopFeeds()
	}
	if rt.stopPump != nil {
		rt.stopPump()
		rt.consumerWG.Wait()
	} else {
		for _, mi := range rt.instances {
			mi.in.Destroy()
		}
		rt.consumer.Pump()
	}
	rt.closeStores()
}

func (rt *runtime) closeStores() {
	if err := rt.tickLog.Close(); err != nil {
		rt.logger.Printf("close tick log: %v", err)
	}
	if rt.seedLog != nil {
		if err := rt.seedLog.Close(); err != nil {
			rt.logger.Printf("close seed log: %v", err)
		}
	}
	if rt.index != nil {
		if err := rt.index.Close(); err != nil {
			rt.logger.Printf("close index: %v", err)
		}
	}
}

func (rt *runtime) metrics() []instance.Metrics {
	out := make([]instance.Metrics, 0, len(rt.instances))
	for _, mi := range rt.instances {
		out = append(out, mi.in.Metrics())
	}
	return out
}
