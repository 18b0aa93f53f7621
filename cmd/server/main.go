package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"debrisfx/internal/sim/catalogs"
	"debrisfx/internal/sim/tuning"
)

func main() {
	var (
		addr           = flag.String("addr", ":8080", "http listen address")
		dataDir        = flag.String("data", "./data", "runtime data directory")
		tuningPath     = flag.String("tuning", "", "path to tuning.yaml (empty: built-in defaults)")
		materialsPath  = flag.String("materials", "", "path to materials.yaml (optional)")
		disableDB      = flag.Bool("disable_db", false, "disable the sqlite tick index")
		disableSeedLog = flag.Bool("disable_seed_log", false, "disable the per-seed JSONL log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(strings.TrimSpace(*tuningPath))
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	cat, err := catalogs.Load(strings.TrimSpace(*materialsPath))
	if err != nil {
		logger.Fatalf("load materials: %v", err)
	}

	rt, err := buildRuntime(runtimeConfig{
		DataDir:        *dataDir,
		DisableDB:      *disableDB,
		DisableSeedLog: *disableSeedLog,
	}, tune, cat, logger)
	if err != nil {
		logger.Fatalf("runtime: %v", err)
	}
	logger.Printf("tuning digest=%s instances=%d sources=%d", tune.Digest(), len(tune.Instances), len(tune.Sources))

	ctx, cancel := signalContext()
	defer cancel()
	rt.start(ctx)

	srv := &http.Server{
		Addr: *addr,
		Handler: rt.handler(httpOptions{
			EnableAdmin: envBool("DEBRIS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()),
			EnablePprof: envBool("DEBRIS_ENABLE_PPROF_HTTP", false),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		cancel()
		rt.shutdown()
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-ctx.Done()
	rt.shutdown()
	logger.Printf("stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
