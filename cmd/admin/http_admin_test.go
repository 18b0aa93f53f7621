package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debrisfx/internal/sim/instance"
)

func fakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/admin/v1/instances", func(rw http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(rw).Encode(serverState{
			TuningDigest: "abc",
			Instances: []instance.Metrics{
				{ID: "id-1", Name: "sparks", Tick: 4},
				{ID: "id-2", Name: "dust", Tick: 9},
			},
		})
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("# HELP debrisfx_instance_tick x\n" +
			"debrisfx_instance_tick{instance=\"sparks\"} 4\n" +
			"debrisfx_publish_queue_depth 0\n"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAdminClientState(t *testing.T) {
	c := newAdminClient(fakeServer(t).URL + "/")

	st, err := c.state("")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.TuningDigest != "abc" || len(st.Instances) != 2 {
		t.Fatalf("state: %+v", st)
	}
	st, err = c.state("id-2")
	if err != nil || len(st.Instances) != 1 || st.Instances[0].Name != "dust" {
		t.Fatalf("filtered by id: %+v err=%v", st, err)
	}
	st, err = c.state("nope")
	if err != nil || len(st.Instances) != 0 {
		t.Fatalf("unknown name: %+v err=%v", st, err)
	}
}

func TestAdminClientMetricsPrefix(t *testing.T) {
	c := newAdminClient(fakeServer(t).URL)
	lines, err := c.metrics("debrisfx_instance_")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	if len(lines) != 1 || !strings.HasSuffix(lines[0], " 4") {
		t.Fatalf("lines: %q", lines)
	}
}

func TestAdminClientReportsForbidden(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		http.Error(rw, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()
	_, err := newAdminClient(srv.URL).state("")
	if err == nil || !strings.Contains(err.Error(), "forbidden") {
		t.Fatalf("expected a forbidden error, got %v", err)
	}
}
