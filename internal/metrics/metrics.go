// Package metrics tracks process counters and renders them in
// Prometheus text exposition format, mirroring the teacher's hand-rolled
// metrics style rather than pulling in a client library.
package metrics

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Metrics holds winderd's runtime counters.
type Metrics struct {
	TotalRuns      int64 `json:"total_runs"`
	TotalGoals     int64 `json:"total_goals_reached"`
	TotalSections  int64 `json:"total_sections_completed"`
	TotalHWErrors  int64 `json:"total_hw_errors"`
	GoroutineCount int   `json:"goroutine_count"`
	MemoryUsed     uint64 `json:"memory_used_bytes"`
	Uptime         int64  `json:"uptime_seconds"`

	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	AvgResponseTime float64 `json:"avg_response_time_ms"`

	mu        sync.RWMutex
	startTime time.Time
}

// New returns a Metrics instance with its uptime clock started.
func New() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) IncrementRuns() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRuns++
}

func (m *Metrics) IncrementGoalsReached() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalGoals++
}

func (m *Metrics) IncrementSectionsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalSections++
}

func (m *Metrics) IncrementHWErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalHWErrors++
}

// RecordResponseTime folds a request duration into an exponential moving
// average (alpha 0.1).
func (m *Metrics) RecordResponseTime(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := float64(d.Milliseconds())
	if m.AvgResponseTime == 0 {
		m.AvgResponseTime = ms
	} else {
		m.AvgResponseTime = (m.AvgResponseTime * 0.9) + (ms * 0.1)
	}
}

func (m *Metrics) IncrementRequests() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
}

func (m *Metrics) IncrementErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalErrors++
}

// UpdateSystemMetrics refreshes the process-level gauges.
func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Uptime = int64(time.Since(m.startTime).Seconds())

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	m.MemoryUsed = mem.Alloc
	m.GoroutineCount = runtime.NumGoroutine()
}

// PrometheusFormat renders the counters in Prometheus text exposition
// format for the /metrics endpoint.
func (m *Metrics) PrometheusFormat() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return `# HELP winder_runs_total Total number of run() transitions
# TYPE winder_runs_total counter
winder_runs_total ` + formatInt64(m.TotalRuns) + `

# HELP winder_goals_reached_total Total number of goal crossings
# TYPE winder_goals_reached_total counter
winder_goals_reached_total ` + formatInt64(m.TotalGoals) + `

# HELP winder_sections_completed_total Total number of section-plan advances
# TYPE winder_sections_completed_total counter
winder_sections_completed_total ` + formatInt64(m.TotalSections) + `

# HELP winder_hw_errors_total Total number of rate-limited GPIO errors logged
# TYPE winder_hw_errors_total counter
winder_hw_errors_total ` + formatInt64(m.TotalHWErrors) + `

# HELP winder_uptime_seconds Process uptime in seconds
# TYPE winder_uptime_seconds gauge
winder_uptime_seconds ` + formatInt64(m.Uptime) + `

# HELP winder_memory_used_bytes Heap bytes allocated
# TYPE winder_memory_used_bytes gauge
winder_memory_used_bytes ` + formatUint64(m.MemoryUsed) + `

# HELP winder_goroutines Number of live goroutines
# TYPE winder_goroutines gauge
winder_goroutines ` + formatInt(m.GoroutineCount) + `

# HELP winder_api_requests_total Total number of HTTP requests served
# TYPE winder_api_requests_total counter
winder_api_requests_total ` + formatInt64(m.TotalRequests) + `

# HELP winder_api_errors_total Total number of HTTP 4xx/5xx responses
# TYPE winder_api_errors_total counter
winder_api_errors_total ` + formatInt64(m.TotalErrors) + `

# HELP winder_api_response_time_ms Average HTTP response time in milliseconds
# TYPE winder_api_response_time_ms gauge
winder_api_response_time_ms ` + formatFloat64(m.AvgResponseTime) + `
`
}

// Middleware records request counts, error counts, and response time
// for every HTTP request served by internal/api.
func Middleware(m *Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		m.IncrementRequests()

		err := c.Next()

		m.RecordResponseTime(time.Since(start))
		if c.Response().StatusCode() >= 400 {
			m.IncrementErrors()
		}
		return err
	}
}

func formatInt64(v int64) string   { return fmt.Sprintf("%d", v) }
func formatUint64(v uint64) string { return fmt.Sprintf("%d", v) }
func formatInt(v int) string       { return fmt.Sprintf("%d", v) }
func formatFloat64(v float64) string { return fmt.Sprintf("%.2f", v) }
