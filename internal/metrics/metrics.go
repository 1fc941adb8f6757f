// Package metrics provides metrics collection for API surface discovery.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates scan metrics.
type Collector struct {
	// Counters
	scans           atomic.Int64
	candidates      atomic.Int64
	descriptorHits  atomic.Int64
	probesPlanned   atomic.Int64
	probesIssued    atomic.Int64
	probesDeduped   atomic.Int64
	probesSucceeded atomic.Int64
	probesSkipped   atomic.Int64
	suppressed      atomic.Int64
	unexpected      atomic.Int64
	endpoints       atomic.Int64
	bytesTotal      atomic.Int64

	// Response time tracking
	responseTimesSum atomic.Int64
	responseTimesNum atomic.Int64

	// Status code breakdown
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordScan increments completed scans.
func (c *Collector) RecordScan() {
	c.scans.Add(1)
}

// RecordCandidates records the size of a finalized candidate set.
func (c *Collector) RecordCandidates(n int) {
	c.candidates.Add(int64(n))
}

// RecordDescriptorHit records a descriptor document that yielded paths.
func (c *Collector) RecordDescriptorHit() {
	c.descriptorHits.Add(1)
}

// RecordPlanned records planned probes, including duplicates.
func (c *Collector) RecordPlanned(n int) {
	c.probesPlanned.Add(int64(n))
}

// RecordDeduped records a probe skipped because its key was already seen.
func (c *Collector) RecordDeduped() {
	c.probesDeduped.Add(1)
}

// RecordSkipped records a probe never sent because the scan was cancelled.
func (c *Collector) RecordSkipped() {
	c.probesSkipped.Add(1)
}

// RecordIssued records a probe handed to the HTTP client.
func (c *Collector) RecordIssued() {
	c.probesIssued.Add(1)
}

// RecordSuccess records a 2xx probe.
func (c *Collector) RecordSuccess() {
	c.probesSucceeded.Add(1)
}

// RecordSuppressed records an expected probe failure.
func (c *Collector) RecordSuppressed() {
	c.suppressed.Add(1)
}

// RecordUnexpected records a probe failure worth reporting.
func (c *Collector) RecordUnexpected() {
	c.unexpected.Add(1)
}

// RecordEndpoints records discovered endpoints after ranking.
func (c *Collector) RecordEndpoints(n int) {
	c.endpoints.Add(int64(n))
}

// RecordBytes records transferred bytes.
func (c *Collector) RecordBytes(n int64) {
	c.bytesTotal.Add(n)
}

// RecordResponseTime records a response time.
func (c *Collector) RecordResponseTime(d time.Duration) {
	c.responseTimesSum.Add(d.Microseconds())
	c.responseTimesNum.Add(1)
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// GetAverageResponseTime returns the average response time.
func (c *Collector) GetAverageResponseTime() time.Duration {
	sum := c.responseTimesSum.Load()
	num := c.responseTimesNum.Load()
	if num == 0 {
		return 0
	}
	return time.Duration(sum/num) * time.Microsecond
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		Timestamp:           time.Now(),
		Uptime:              time.Since(c.startTime),
		Scans:               c.scans.Load(),
		Candidates:          c.candidates.Load(),
		DescriptorHits:      c.descriptorHits.Load(),
		ProbesPlanned:       c.probesPlanned.Load(),
		ProbesIssued:        c.probesIssued.Load(),
		ProbesDeduped:       c.probesDeduped.Load(),
		ProbesSkipped:       c.probesSkipped.Load(),
		ProbesSucceeded:     c.probesSucceeded.Load(),
		Suppressed:          c.suppressed.Load(),
		Unexpected:          c.unexpected.Load(),
		Endpoints:           c.endpoints.Load(),
		BytesTotal:          c.bytesTotal.Load(),
		AverageResponseTime: c.GetAverageResponseTime(),
		StatusCodes:         make(map[int]int64),
		responseTimesSum:    c.responseTimesSum.Load(),
		responseTimesNum:    c.responseTimesNum.Load(),
	}

	c.statusMu.RLock()
	for k, v := range c.statusCodes {
		s.StatusCodes[k] = v.Load()
	}
	c.statusMu.RUnlock()

	return s
}

// Add folds a snapshot from another collector into this one.
func (c *Collector) Add(s Snapshot) {
	c.scans.Add(s.Scans)
	c.candidates.Add(s.Candidates)
	c.descriptorHits.Add(s.DescriptorHits)
	c.probesPlanned.Add(s.ProbesPlanned)
	c.probesIssued.Add(s.ProbesIssued)
	c.probesDeduped.Add(s.ProbesDeduped)
	c.probesSkipped.Add(s.ProbesSkipped)
	c.probesSucceeded.Add(s.ProbesSucceeded)
	c.suppressed.Add(s.Suppressed)
	c.unexpected.Add(s.Unexpected)
	c.endpoints.Add(s.Endpoints)
	c.bytesTotal.Add(s.BytesTotal)
	c.responseTimesSum.Add(s.responseTimesSum)
	c.responseTimesNum.Add(s.responseTimesNum)

	c.statusMu.Lock()
	for code, n := range s.StatusCodes {
		if c.statusCodes[code] == nil {
			c.statusCodes[code] = &atomic.Int64{}
		}
		c.statusCodes[code].Add(n)
	}
	c.statusMu.Unlock()
}

// Snapshot represents a point-in-time view of metrics.
type Snapshot struct {
	Timestamp           time.Time       `json:"timestamp"`
	Uptime              time.Duration   `json:"uptime"`
	Scans               int64           `json:"scans"`
	Candidates          int64           `json:"candidates"`
	DescriptorHits      int64           `json:"descriptor_hits"`
	ProbesPlanned       int64           `json:"probes_planned"`
	ProbesIssued        int64           `json:"probes_issued"`
	ProbesDeduped       int64           `json:"probes_deduped"`
	ProbesSkipped       int64           `json:"probes_skipped"`
	ProbesSucceeded     int64           `json:"probes_succeeded"`
	Suppressed          int64           `json:"suppressed_failures"`
	Unexpected          int64           `json:"unexpected_failures"`
	Endpoints           int64           `json:"endpoints"`
	BytesTotal          int64           `json:"bytes_total"`
	AverageResponseTime time.Duration   `json:"average_response_time"`
	StatusCodes         map[int]int64   `json:"status_codes"`

	responseTimesSum int64
	responseTimesNum int64
}

// FailureRate returns failed probes over issued probes.
func (s Snapshot) FailureRate() float64 {
	if s.ProbesIssued == 0 {
		return 0
	}
	return float64(s.Suppressed+s.Unexpected) / float64(s.ProbesIssued)
}

// Summary returns a flat view suitable for structured logging.
func (s Snapshot) Summary() map[string]interface{} {
	return map[string]interface{}{
		"candidates":           s.Candidates,
		"descriptor_hits":      s.DescriptorHits,
		"probes_planned":       s.ProbesPlanned,
		"probes_issued":        s.ProbesIssued,
		"probes_deduped":       s.ProbesDeduped,
		"probes_succeeded":     s.ProbesSucceeded,
		"suppressed_failures":  s.Suppressed,
		"unexpected_failures":  s.Unexpected,
		"endpoints":            s.Endpoints,
		"failure_rate":         s.FailureRate(),
		"avg_response_time_ms": s.AverageResponseTime.Milliseconds(),
	}
}
