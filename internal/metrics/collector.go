// Package metrics keeps the process counters and renders them in Prometheus
// text exposition format for the admin API.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Default is the process-wide collector.
var Default = NewCollector()

// Collector aggregates counters, gauges and histograms keyed by name and
// label set.
type Collector struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
	started    time.Time
}

func NewCollector() *Collector {
	return &Collector{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		started:    time.Now(),
	}
}

// Uptime returns the time since the collector was created.
func (c *Collector) Uptime() time.Duration { return time.Since(c.started) }

type series struct {
	name   string
	help   string
	labels string
}

func (s series) key() string { return s.name + "{" + s.labels + "}" }

// Counter only goes up.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge goes up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram records a cumulative distribution over fixed buckets.
type Histogram struct {
	series
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// ObserveSince records the seconds elapsed since start.
func (h *Histogram) ObserveSince(start time.Time) {
	h.Observe(time.Since(start).Seconds())
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Counter returns the counter for name and labels, creating it on first use.
func (c *Collector) Counter(name, help, labels string) *Counter {
	s := series{name, help, labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctr, ok := c.counters[s.key()]; ok {
		return ctr
	}
	ctr := &Counter{series: s}
	c.counters[s.key()] = ctr
	return ctr
}

// Gauge returns the gauge for name and labels, creating it on first use.
func (c *Collector) Gauge(name, help, labels string) *Gauge {
	s := series{name, help, labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.gauges[s.key()]; ok {
		return g
	}
	g := &Gauge{series: s}
	c.gauges[s.key()] = g
	return g
}

// Histogram returns the histogram for name and labels, creating it on first
// use. buckets is only read on creation.
func (c *Collector) Histogram(name, help, labels string, buckets []float64) *Histogram {
	s := series{name, help, labels}
	c.mu.Lock()
	defer c.mu.Unlock()
	if h, ok := c.histograms[s.key()]; ok {
		return h
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	h := &Histogram{series: s, bounds: bounds, counts: make([]int64, len(bounds))}
	c.histograms[s.key()] = h
	return h
}

// Handler serves the exposition text.
func (c *Collector) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.WriteTo(w)
	}
}

// WriteTo renders every series sorted by name and labels.
func (c *Collector) WriteTo(w io.Writer) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# HELP alphabot_uptime_seconds Time since start in seconds\n")
	fmt.Fprintf(&sb, "# TYPE alphabot_uptime_seconds gauge\n")
	fmt.Fprintf(&sb, "alphabot_uptime_seconds %d\n", int64(c.Uptime().Seconds()))

	c.mu.RLock()
	counters := sortedSeries(c.counters)
	gauges := sortedSeries(c.gauges)
	histograms := sortedSeries(c.histograms)
	c.mu.RUnlock()

	header := headerWriter(&sb)
	for _, ctr := range counters {
		header(ctr.series, "counter")
		fmt.Fprintf(&sb, "%s %d\n", sampleName(ctr.name, ctr.labels), ctr.Value())
	}
	for _, g := range gauges {
		header(g.series, "gauge")
		fmt.Fprintf(&sb, "%s %d\n", sampleName(g.name, g.labels), g.Value())
	}
	for _, h := range histograms {
		header(h.series, "histogram")
		h.mu.Lock()
		for i, le := range h.bounds {
			bound := fmt.Sprintf("%g", le)
			if math.IsInf(le, 1) {
				bound = "+Inf"
			}
			labels := `le="` + bound + `"`
			if h.labels != "" {
				labels = h.labels + "," + labels
			}
			fmt.Fprintf(&sb, "%s %d\n", sampleName(h.name+"_bucket", labels), h.counts[i])
		}
		fmt.Fprintf(&sb, "%s %d\n", sampleName(h.name+"_count", h.labels), h.count)
		fmt.Fprintf(&sb, "%s %f\n", sampleName(h.name+"_sum", h.labels), h.sum)
		h.mu.Unlock()
	}
	_, _ = io.WriteString(w, sb.String())
}

type named interface{ seriesKey() series }

func (c *Counter) seriesKey() series   { return c.series }
func (g *Gauge) seriesKey() series     { return g.series }
func (h *Histogram) seriesKey() series { return h.series }

func sortedSeries[T named](m map[string]T) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].seriesKey().key() < out[j].seriesKey().key()
	})
	return out
}

// headerWriter emits HELP and TYPE once per metric name.
func headerWriter(sb *strings.Builder) func(series, string) {
	seen := make(map[string]bool)
	return func(s series, typ string) {
		if seen[s.name] {
			return
		}
		seen[s.name] = true
		fmt.Fprintf(sb, "# HELP %s %s\n", s.name, s.help)
		fmt.Fprintf(sb, "# TYPE %s %s\n", s.name, typ)
	}
}

func sampleName(name, labels string) string {
	if labels == "" {
		return name
	}
	return name + "{" + labels + "}"
}

// Process metrics.
var (
	EventsTotal        = Default.Counter("alphabot_events_total", "Inbound events received", "")
	DuplicatesTotal    = Default.Counter("alphabot_duplicates_total", "Inbound events dropped as duplicate deliveries", "")
	CommandsTotal      = Default.Counter("alphabot_commands_total", "Intents dispatched to the command table", "")
	PolicyIgnoredTotal = Default.Counter("alphabot_policy_ignored_total", "Command-shaped events ignored by mode gating", "")
	AntilinkTotal      = Default.Counter("alphabot_antilink_removals_total", "Members removed for posting links", "")
	ModerationFailures = Default.Counter("alphabot_moderation_failures_total", "Moderation actions that failed", "")
	HandlerErrors      = Default.Counter("alphabot_handler_errors_total", "Event handling errors and recovered panics", "")
	InFlightEvents     = Default.Gauge("alphabot_inflight_events", "Events currently being handled", "")

	HandleLatency = Default.Histogram("alphabot_handle_latency_seconds", "Time to handle one inbound event", "",
		[]float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30})
)
