// Package telemetry records request and letter pipeline metrics and serves
// them in the Prometheus text exposition format, using only standard library
// constructs.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

// ---------------------------------------------------------------------------
// Histogram: Prometheus-style histogram with buckets
// ---------------------------------------------------------------------------

// histogram is a thread-safe histogram with configurable bucket boundaries.
// Bucket counts are non-cumulative in storage; cumulative counts are computed
// at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64 // one per boundary, non-cumulative
	count        int64
	sum          uint64     // stored as math.Float64bits for atomic add
	mu           sync.Mutex // protects bucketCounts
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

// Observe records a single value.
func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			h.mu.Unlock()
			return
		}
	}
	// Value exceeds all boundaries; counted in +Inf at export.
	h.mu.Unlock()
}

// Count returns the total number of observations.
func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

// Sum returns the total sum of all observations.
func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

// cumulativeBuckets returns cumulative bucket counts for Prometheus export.
func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	cum := make([]int64, len(raw))
	var running int64
	for i, c := range raw {
		running += c
		cum[i] = running
	}
	return cum
}

// atomicAddFloat64 performs an atomic add on a uint64 that stores a float64
// using CAS.
func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		newVal := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(addr, old, math.Float64bits(newVal)) {
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Labeled stores
// ---------------------------------------------------------------------------

type histogramStore struct {
	mu         sync.RWMutex
	boundaries []float64
	items      map[string]*histogram
}

func newHistogramStore(boundaries []float64) *histogramStore {
	return &histogramStore{boundaries: boundaries, items: make(map[string]*histogram)}
}

func (s *histogramStore) get(key string) *histogram {
	s.mu.RLock()
	h, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return h
	}
	s.mu.Lock()
	h, ok = s.items[key]
	if !ok {
		h = newHistogram(s.boundaries)
		s.items[key] = h
	}
	s.mu.Unlock()
	return h
}

func (s *histogramStore) lookup(key string) *histogram {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items[key]
}

// sorted returns the keys in a stable order so scrapes are diffable.
func (s *histogramStore) sorted() ([]string, map[string]*histogram) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]*histogram, len(s.items))
	keys := make([]string, 0, len(s.items))
	for k, v := range s.items {
		cp[k] = v
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, cp
}

type counterStore struct {
	mu    sync.RWMutex
	items map[string]*int64
}

func newCounterStore() *counterStore {
	return &counterStore{items: make(map[string]*int64)}
}

func (s *counterStore) inc(key string) {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		atomic.AddInt64(p, 1)
		return
	}
	s.mu.Lock()
	p, ok = s.items[key]
	if !ok {
		v := int64(1)
		s.items[key] = &v
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	atomic.AddInt64(p, 1)
}

func (s *counterStore) get(key string) int64 {
	s.mu.RLock()
	p, ok := s.items[key]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(p)
}

func (s *counterStore) sorted() ([]string, map[string]int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make(map[string]int64, len(s.items))
	keys := make([]string, 0, len(s.items))
	for k, p := range s.items {
		cp[k] = atomic.LoadInt64(p)
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, cp
}

// ---------------------------------------------------------------------------
// Provider
// ---------------------------------------------------------------------------

// durationBuckets are the histogram bucket boundaries in seconds. Rendering a
// long letter takes longer than a typical API call, hence the upper buckets.
var durationBuckets = []float64{
	0.010, 0.025, 0.050, 0.100, 0.250, 0.500, 1.0, 2.5, 5.0, 10.0, 30.0,
}

// Provider holds all metric state. The zero value is not usable; call New.
type Provider struct {
	requests *histogramStore // method|route|status
	letters  *histogramStore // operation|outcome
	outcomes *counterStore   // operation|outcome
	active   int64
}

// New returns an empty provider.
func New() *Provider {
	return &Provider{
		requests: newHistogramStore(durationBuckets),
		letters:  newHistogramStore(durationBuckets),
		outcomes: newCounterStore(),
	}
}

// LabelsKey builds the map key for a labeled metric. Exported so tests can
// construct the same key.
func LabelsKey(values ...string) string {
	return strings.Join(values, "|")
}

// ObserveLetter records one pipeline operation (pdf, preview, archive) with
// its outcome (ok, error, cancelled).
func (p *Provider) ObserveLetter(operation, outcome string, d time.Duration) {
	key := LabelsKey(operation, outcome)
	p.outcomes.inc(key)
	p.letters.get(key).Observe(d.Seconds())
}

// LetterCount returns how many operations finished with outcome.
func (p *Provider) LetterCount(operation, outcome string) int64 {
	return p.outcomes.get(LabelsKey(operation, outcome))
}

// RequestCount returns the number of requests recorded for the labels.
func (p *Provider) RequestCount(method, route, status string) int64 {
	h := p.requests.lookup(LabelsKey(method, route, status))
	if h == nil {
		return 0
	}
	return h.Count()
}

// ActiveRequests returns the number of requests in flight.
func (p *Provider) ActiveRequests() int64 {
	return atomic.LoadInt64(&p.active)
}

// ---------------------------------------------------------------------------
// MetricsMiddleware
// ---------------------------------------------------------------------------

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (p *Provider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&p.active, 1)
			start := time.Now()

			err := next(c)

			duration := time.Since(start).Seconds()
			atomic.AddInt64(&p.active, -1)

			// Route pattern, not the actual path, keeps cardinality bounded.
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok && !c.Response().Committed {
				status = he.Code
			}
			p.requests.get(LabelsKey(c.Request().Method, route, strconv.Itoa(status))).Observe(duration)

			return err
		}
	}
}

// ---------------------------------------------------------------------------
// PrometheusHandler
// ---------------------------------------------------------------------------

// PrometheusHandler returns an Echo handler that serves metrics in Prometheus
// text exposition format at /metrics.
func (p *Provider) PrometheusHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		var b strings.Builder

		writeHistograms(&b, "http_server_request_duration_seconds",
			"Duration of HTTP requests in seconds.", p.requests,
			[]string{"method", "route", "status_code"})

		b.WriteString("# HELP http_server_active_requests Number of active HTTP requests.\n")
		b.WriteString("# TYPE http_server_active_requests gauge\n")
		fmt.Fprintf(&b, "http_server_active_requests %d\n\n", p.ActiveRequests())

		writeHistograms(&b, "letter_operation_duration_seconds",
			"Duration of letter pipeline operations in seconds.", p.letters,
			[]string{"operation", "outcome"})

		b.WriteString("# HELP letter_operations_total Letter pipeline operations by outcome.\n")
		b.WriteString("# TYPE letter_operations_total counter\n")
		keys, counts := p.outcomes.sorted()
		for _, key := range keys {
			fmt.Fprintf(&b, "letter_operations_total{%s} %d\n", labels(key, "operation", "outcome"), counts[key])
		}
		b.WriteByte('\n')

		return c.Blob(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(b.String()))
	}
}

// ---------------------------------------------------------------------------
// Prometheus format helpers
// ---------------------------------------------------------------------------

func labels(key string, names ...string) string {
	values := strings.SplitN(key, "|", len(names))
	parts := make([]string, 0, len(names))
	for i, n := range names {
		v := ""
		if i < len(values) {
			v = values[i]
		}
		parts = append(parts, fmt.Sprintf("%s=%q", n, v))
	}
	return strings.Join(parts, ",")
}

func writeHistograms(b *strings.Builder, name, help string, store *histogramStore, names []string) {
	fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	fmt.Fprintf(b, "# TYPE %s histogram\n", name)
	keys, hists := store.sorted()
	for _, key := range keys {
		writeSingleHistogram(b, name, labels(key, names...), hists[key], store.boundaries)
	}
	b.WriteByte('\n')
}

func writeSingleHistogram(b *strings.Builder, name, labels string,
	h *histogram, boundaries []float64) {

	cum := h.cumulativeBuckets()
	total := h.Count()

	for i, boundary := range boundaries {
		fmt.Fprintf(b, "%s_bucket{%s,le=\"%g\"} %d\n", name, labels, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%s,le=\"+Inf\"} %d\n", name, labels, total)
	fmt.Fprintf(b, "%s_sum{%s} %g\n", name, labels, h.Sum())
	fmt.Fprintf(b, "%s_count{%s} %d\n", name, labels, total)
}
