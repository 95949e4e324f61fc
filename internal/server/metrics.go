package server

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"aigist/internal/version"
)

// lightweight in-process metrics collector
type metricsCollector struct {
	mu sync.Mutex
	// counters keyed by method|path|status
	reqTotal map[string]int
	// duration sum/count keyed by method|path
	durSum   map[string]float64
	durCount map[string]int

	upstreamErrors     map[int]int
	mirrorWrites       int
	mirrorFailures     int
	completions        int
	completionFailures int
	actions            map[string]int
	invalidActions     int
}

func newMetrics() *metricsCollector {
	return &metricsCollector{
		reqTotal:       make(map[string]int),
		durSum:         make(map[string]float64),
		durCount:       make(map[string]int),
		upstreamErrors: make(map[int]int),
		actions:        make(map[string]int),
	}
}

func (m *metricsCollector) observeRequest(method, path string, status int, dur time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqTotal[method+"|"+path+"|"+strconv.Itoa(status)]++
	m.durSum[method+"|"+path] += dur.Seconds()
	m.durCount[method+"|"+path]++
}

func (m *metricsCollector) inc(f func(*metricsCollector)) {
	m.mu.Lock()
	f(m)
	m.mu.Unlock()
}

// snapshot returns the flat counters served by /metrics?format=json.
func (m *metricsCollector) snapshot() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int{
		"mirror_writes":       m.mirrorWrites,
		"mirror_failures":     m.mirrorFailures,
		"completions":         m.completions,
		"completion_failures": m.completionFailures,
		"invalid_actions":     m.invalidActions,
	}
	total := 0
	for _, v := range m.reqTotal {
		total += v
	}
	out["http_requests"] = total
	upstream := 0
	for _, v := range m.upstreamErrors {
		upstream += v
	}
	out["upstream_errors"] = upstream
	for name, v := range m.actions {
		out["actions_"+name] = v
	}
	return out
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	// Content negotiation: default to Prometheus text exposition.
	// Use JSON when explicitly requested via query or Accept header.
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "json" || strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, a.metrics.snapshot())
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	a.metrics.writeText(w)
}

func (m *metricsCollector) writeText(w io.Writer) {
	m.mu.Lock()
	defer m.mu.Unlock()

	io.WriteString(w, "# HELP aigist_http_requests_total HTTP requests by method, path and status.\n")
	io.WriteString(w, "# TYPE aigist_http_requests_total counter\n")
	for _, key := range sortedKeys(m.reqTotal) {
		parts := strings.Split(key, "|")
		if len(parts) == 3 {
			fmt.Fprintf(w, "aigist_http_requests_total{method=%q,path=%q,status=%q} %d\n", parts[0], parts[1], parts[2], m.reqTotal[key])
		}
	}
	io.WriteString(w, "# TYPE aigist_http_request_duration_seconds summary\n")
	for _, key := range sortedKeys(m.durSum) {
		parts := strings.Split(key, "|")
		if len(parts) == 2 {
			fmt.Fprintf(w, "aigist_http_request_duration_seconds_sum{method=%q,path=%q} %f\n", parts[0], parts[1], m.durSum[key])
			fmt.Fprintf(w, "aigist_http_request_duration_seconds_count{method=%q,path=%q} %d\n", parts[0], parts[1], m.durCount[key])
		}
	}

	io.WriteString(w, "# HELP aigist_upstream_errors_total Non-2xx responses from the gist host.\n")
	io.WriteString(w, "# TYPE aigist_upstream_errors_total counter\n")
	codes := make([]int, 0, len(m.upstreamErrors))
	for c := range m.upstreamErrors {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	for _, c := range codes {
		fmt.Fprintf(w, "aigist_upstream_errors_total{status=\"%d\"} %d\n", c, m.upstreamErrors[c])
	}

	io.WriteString(w, "# TYPE aigist_mirror_writes_total counter\n")
	fmt.Fprintf(w, "aigist_mirror_writes_total %d\n", m.mirrorWrites)
	io.WriteString(w, "# TYPE aigist_mirror_failures_total counter\n")
	fmt.Fprintf(w, "aigist_mirror_failures_total %d\n", m.mirrorFailures)
	io.WriteString(w, "# TYPE aigist_completions_total counter\n")
	fmt.Fprintf(w, "aigist_completions_total %d\n", m.completions)
	io.WriteString(w, "# TYPE aigist_completion_failures_total counter\n")
	fmt.Fprintf(w, "aigist_completion_failures_total %d\n", m.completionFailures)

	io.WriteString(w, "# HELP aigist_actions_total Gist actions dispatched from completions.\n")
	io.WriteString(w, "# TYPE aigist_actions_total counter\n")
	for _, name := range sortedKeys(m.actions) {
		fmt.Fprintf(w, "aigist_actions_total{action=%q} %d\n", name, m.actions[name])
	}
	io.WriteString(w, "# TYPE aigist_invalid_actions_total counter\n")
	fmt.Fprintf(w, "aigist_invalid_actions_total %d\n", m.invalidActions)

	io.WriteString(w, "# HELP aigist_build_info Build information.\n")
	io.WriteString(w, "# TYPE aigist_build_info gauge\n")
	fmt.Fprintf(w, "aigist_build_info{version=%q,commit=%q} 1\n", version.Version, version.Commit)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
