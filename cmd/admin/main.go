package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "debrisfx/internal/persistence/log"
	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/event"
	"debrisfx/internal/sim/instance"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "metrics":
			metricsCmd(os.Args[2:])
			return
		case "ticks":
			ticksCmd(os.Args[2:])
			return
		case "recording":
			recordingCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	for _, sub := range []string{"ticks", "seeds", "index"} {
		ents, err := os.ReadDir(filepath.Join(*dataDir, sub))
		if err != nil {
			continue
		}
		for _, e := range ents {
			fmt.Println(filepath.Join(sub, e.Name()))
		}
	}
}

func ticksCmd(args []string) {
	fs := flag.NewFlagSet("ticks", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	name := fs.String("instance", "", "instance name or id filter (optional)")
	onlyErrors := fs.Bool("errors", false, "only aborted ticks")
	from := fs.Uint64("from_tick", 0, "first tick (inclusive, optional)")
	to := fs.Uint64("to_tick", 0, "last tick (inclusive, optional)")
	_ = fs.Parse(args)

	n, err := readTicks(filepath.Join(*dataDir, "ticks"), tickFilter{
		Instance:   strings.TrimSpace(*name),
		OnlyErrors: *onlyErrors,
		FromTick:   *from,
		ToTick:     *to,
	}, func(e instance.TickLogEntry) { printJSON(e) })
	if err != nil {
		fmt.Fprintln(os.Stderr, "read ticks:", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "%d entries\n", n)
}

type tickFilter struct {
	Instance   string
	OnlyErrors bool
	FromTick   uint64
	ToTick     uint64
}

func (f tickFilter) match(e instance.TickLogEntry) bool {
	if f.Instance != "" && e.Name != f.Instance && e.Instance != f.Instance {
		return false
	}
	if f.OnlyErrors && e.Error == "" {
		return false
	}
	if e.Tick < f.FromTick {
		return false
	}
	return f.ToTick == 0 || e.Tick <= f.ToTick
}

// readTicks calls fn for every matching entry of the hourly tick logs in dir,
// oldest file first.
func readTicks(dir string, f tickFilter, fn func(instance.TickLogEntry)) (int, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
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

	n := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		err := persistlog.ReadJSONL(path, func(line []byte) error {
			var e instance.TickLogEntry
			if err := json.Unmarshal(line, &e); err != nil {
				return fmt.Errorf("%s: unmarshal: %w", name, err)
			}
			if f.match(e) {
				n++
				fn(e)
			}
			return nil
		})
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func recordingCmd(args []string) {
	fs := flag.NewFlagSet("recording", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: admin recording PATH")
		os.Exit(2)
	}
	sum, err := summarizeRecording(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, "recording:", err)
		os.Exit(1)
	}
	printJSON(sum)
}

type recordingSummary struct {
	Header     recording.Header `json:"header"`
	Frames     uint64           `json:"frames"`
	FirstTime  float64          `json:"first_solver_time"`
	LastTime   float64          `json:"last_solver_time"`
	Collisions int              `json:"collisions"`
	Breakings  int              `json:"breakings"`
	Trailings  int              `json:"trailings"`
	// Disabled counts frames per event kind whose kind was switched off.
	Disabled map[string]int `json:"disabled,omitempty"`
}

func summarizeRecording(path string) (recordingSummary, error) {
	r, err := recording.Open(path)
	if err != nil {
		return recordingSummary{}, err
	}
	defer r.Close()

	sum := recordingSummary{Header: r.Header, Disabled: map[string]int{}}
	for {
		fr, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return sum, err
		}
		if sum.Frames == 0 {
			sum.FirstTime = fr.SolverTime
		}
		sum.Frames++
		sum.LastTime = fr.SolverTime
		sum.Collisions += len(fr.Collisions)
		sum.Breakings += len(fr.Breakings)
		sum.Trailings += len(fr.Trailings)
		for _, k := range []event.Kind{event.KindCollision, event.KindBreaking, event.KindTrailing} {
			if !fr.KindEnabled(k) {
				sum.Disabled[k.String()]++
			}
		}
	}
	return sum, nil
}
