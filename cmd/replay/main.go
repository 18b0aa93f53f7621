package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/tuning"
)

func main() {
	var (
		recPath    = flag.String("recording", "", "path to .rec.zst")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		materials  = flag.String("materials", "", "path to materials.yaml (optional)")
		maxFrames  = flag.Int("frames", 0, "stop after this many frames (0: all)")
		seed       = flag.Int64("seed", 0, "rng seed (0: tuning seed, else 1)")
		ticksOut   = flag.String("ticks_out", "", "write a tick log of the replay under this directory (optional)")
		verifyDir  = flag.String("verify", "", "ticks dir containing ticks-*.jsonl.zst to compare against (optional)")
		verbose    = flag.Bool("v", false, "log instance messages to stderr")
		asJSON     = flag.Bool("json", false, "print the summary as JSON")
	)
	flag.Parse()

	if *recPath == "" {
		fmt.Fprintln(os.Stderr, "missing -recording")
		os.Exit(2)
	}
	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}
	cat, err := catalogs.Load(strings.TrimSpace(*materials))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load materials:", err)
		os.Exit(1)
	}
	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "[replay] ", log.LstdFlags|log.Lmicroseconds)
	}

	sum, err := run(options{
		Recording: *recPath,
		MaxFrames: *maxFrames,
		Seed:      *seed,
		TicksOut:  *ticksOut,
		Verify:    *verifyDir,
	}, tune, cat, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(sum)
		return
	}
	fmt.Printf("recording v%d source=%s frame_hz=%g frames=%d\n", sum.Header.Version, sum.Header.Source, sum.Header.FrameHz, sum.Frames)
	for _, in := range sum.Instances {
		fmt.Printf("  %s (%s): ticks=%d seeds=%d aborted=%d last_point_id=%d armed=%d stale=%d\n",
			in.Name, in.Kind, in.Ticks, in.Seeds, in.Aborted, in.LastSpawnedPointID,
			in.Counters["ticks_armed"], in.Counters["events_stale"])
	}
	if *verifyDir != "" {
		fmt.Printf("replay ok: verified=%d ticks\n", sum.Verified)
	}
}
