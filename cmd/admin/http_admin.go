package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"debrisfx/internal/sim/instance"
)

// adminClient talks to a running server's HTTP surface.
type adminClient struct {
	base string
	hc   *http.Client
}

func newAdminClient(baseURL string) adminClient {
	return adminClient{
		base: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		hc:   &http.Client{Timeout: 5 * time.Second},
	}
}

// get returns the body of a 2xx response. Other statuses are errors that carry
// the body text.
func (c adminClient) get(path string) ([]byte, error) {
	resp, err := c.hc.Get(c.base + path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%s: %s: %s", path, resp.Status, strings.TrimSpace(string(b)))
	}
	return b, nil
}

type serverState struct {
	TuningDigest  string             `json:"tuning_digest"`
	CatalogDigest string             `json:"catalog_digest"`
	Instances     []instance.Metrics `json:"instances"`
}

// state fetches /admin/v1/instances, keeping only instances whose name or id
// matches when name is set.
func (c adminClient) state(name string) (serverState, error) {
	var st serverState
	b, err := c.get("/admin/v1/instances")
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return st, fmt.Errorf("decode state: %w", err)
	}
	if name != "" {
		kept := st.Instances[:0]
		for _, m := range st.Instances {
			if m.Name == name || m.ID == name {
				kept = append(kept, m)
			}
		}
		st.Instances = kept
	}
	return st, nil
}

// metrics fetches /metrics and returns the sample lines that start with prefix.
func (c adminClient) metrics(prefix string) ([]string, error) {
	b, err := c.get("/metrics")
	if err != nil {
		return nil, err
	}
	var out []string
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") || !strings.HasPrefix(line, prefix) {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func stateCmd(args []string) {
	fs := flag.NewFlagSet("state", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	name := fs.String("instance", "", "instance name or id filter (optional)")
	_ = fs.Parse(args)

	st, err := newAdminClient(*baseURL).state(strings.TrimSpace(*name))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printJSON(st)
}

func metricsCmd(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	prefix := fs.String("prefix", "debrisfx_", "metric name prefix")
	_ = fs.Parse(args)

	lines, err := newAdminClient(*baseURL).metrics(*prefix)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	for _, l := range lines {
		fmt.Println(l)
	}
}
