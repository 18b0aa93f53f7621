package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
)

type httpOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func (rt *runtime) handler(opts httpOptions) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", rt.writeMetrics)

	if opts.EnableAdmin {
		// Local-only.
		mux.HandleFunc("/admin/v1/instances", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				TuningDigest  string `json:"tuning_digest"`
				CatalogDigest string `json:"catalog_digest"`
				Instances     any    `json:"instances"`
			}{
				TuningDigest:  rt.tune.Digest(),
				CatalogDigest: rt.cat.Digest,
				Instances:     rt.metrics(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		rt.logger.Printf("admin endpoints disabled (DEBRIS_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/observer/ws", rt.observer.WSHandler())
	return mux
}

func (rt *runtime) writeMetrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	// Minimal Prometheus exposition format.
	fmt.Fprintf(rw, "# HELP debrisfx_instance_tick Current instance tick.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_instance_tick gauge\n")
	for _, m := range rt.metrics() {
		fmt.Fprintf(rw, "debrisfx_instance_tick{instance=%q} %d\n", m.Name, m.Tick)
	}

	fmt.Fprintf(rw, "# HELP debrisfx_instance_last_spawned_point_id Last point id handed out.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_instance_last_spawned_point_id gauge\n")
	for _, m := range rt.metrics() {
		fmt.Fprintf(rw, "debrisfx_instance_last_spawned_point_id{instance=%q} %d\n", m.Name, m.LastSpawnedPointID)
	}

	fmt.Fprintf(rw, "# HELP debrisfx_instance_step_ms Last tick step duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_instance_step_ms gauge\n")
	for _, m := range rt.metrics() {
		fmt.Fprintf(rw, "debrisfx_instance_step_ms{instance=%q} %.3f\n", m.Name, m.StepMS)
	}

	fmt.Fprintf(rw, "# HELP debrisfx_pipeline_total Pipeline counters.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_pipeline_total counter\n")
	for _, mi := range rt.instances {
		name := mi.in.Config().Name
		totals := mi.counters.Snapshot()
		for _, c := range mi.counters.Names() {
			fmt.Fprintf(rw, "debrisfx_pipeline_total{instance=%q,counter=%q} %d\n", name, c, totals[c])
		}
	}

	fmt.Fprintf(rw, "# HELP debrisfx_publish_queue_depth Snapshots and teardowns waiting for the consumer.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_publish_queue_depth gauge\n")
	fmt.Fprintf(rw, "debrisfx_publish_queue_depth %d\n", rt.queue.Len())

	fmt.Fprintf(rw, "# HELP debrisfx_observer_sessions Connected observers.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_observer_sessions gauge\n")
	fmt.Fprintf(rw, "debrisfx_observer_sessions %d\n", rt.observer.Sessions())

	fmt.Fprintf(rw, "# HELP debrisfx_observer_dropped_total Messages dropped for slow observers.\n")
	fmt.Fprintf(rw, "# TYPE debrisfx_observer_dropped_total counter\n")
	fmt.Fprintf(rw, "debrisfx_observer_dropped_total %d\n", rt.observer.Dropped())

	if rt.seedLog != nil {
		fmt.Fprintf(rw, "# HELP debrisfx_seed_log_failures_total Seed log writes that failed.\n")
		fmt.Fprintf(rw, "# TYPE debrisfx_seed_log_failures_total counter\n")
		fmt.Fprintf(rw, "debrisfx_seed_log_failures_total %d\n", rt.seedLog.Failures())
	}

	if rt.index != nil {
		s := rt.index.Stats()
		fmt.Fprintf(rw, "# HELP debrisfx_index_queue_depth SQLite index queue depth.\n")
		fmt.Fprintf(rw, "# TYPE debrisfx_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "debrisfx_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP debrisfx_index_dropped_total Index writes dropped because the queue was full.\n")
		fmt.Fprintf(rw, "# TYPE debrisfx_index_dropped_total counter\n")
		fmt.Fprintf(rw, "debrisfx_index_dropped_total{kind=%q} %d\n", "tick", s.DropTickTotal)
		fmt.Fprintf(rw, "debrisfx_index_dropped_total{kind=%q} %d\n", "instance", s.DropInstanceTotal)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
