package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"debrisfx/internal/persistence/recording"
	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/source"
)

func main() {
	var (
		out       = flag.String("out", "", "output recording path (.rec.zst)")
		name      = flag.String("source", "synthetic", "source name stored in the header")
		frames    = flag.Int("frames", 300, "number of frames to record")
		frameHz   = flag.Float64("frame_hz", 30, "solver frames per second")
		events    = flag.Int("events", 16, "collisions per frame (breakings and trailings scale from it)")
		extent    = flag.Float64("extent", 80, "half size of the cube events are placed in")
		seed      = flag.Int64("seed", 1, "scene seed")
		materials = flag.String("materials", "", "materials.yaml; bodies and material names are attributed to events (optional)")
	)
	flag.Parse()

	if strings.TrimSpace(*out) == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}
	cat, err := catalogs.Load(strings.TrimSpace(*materials))
	if err != nil {
		fmt.Fprintln(os.Stderr, "load materials:", err)
		os.Exit(1)
	}

	h, n, err := record(*out, *name, *frames, source.SceneConfig{
		FrameHz:        *frameHz,
		EventsPerFrame: *events,
		Extent:         float32(*extent),
		Seed:           *seed,
		Proxies:        int32(len(cat.Bodies)),
		Materials:      cat.MaterialNames(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "record:", err)
		os.Exit(1)
	}
	fmt.Printf("recorded source=%s frames=%d events=%d frame_hz=%g seed=%d -> %s\n", h.Source, n, *events, h.FrameHz, h.Seed, *out)
}

// record writes frames frames of a synthetic scene and returns the header and
// the number of events written.
func record(path, name string, frames int, cfg source.SceneConfig) (recording.Header, int, error) {
	scene := source.NewScene(cfg)
	h := recording.Header{
		Source:      name,
		FrameHz:     cfg.FrameHz,
		Seed:        cfg.Seed,
		CreatedUnix: time.Now().Unix(),
	}
	if h.FrameHz <= 0 {
		h.FrameHz = 30
	}
	w, err := recording.Create(path, h)
	if err != nil {
		return h, 0, err
	}
	events := 0
	for i := 0; i < frames; i++ {
		fr, _ := scene.Next()
		if err := w.WriteFrame(fr); err != nil {
			_ = w.Close()
			return h, events, err
		}
		events += fr.Len()
	}
	return h, events, w.Close()
}
