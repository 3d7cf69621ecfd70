package metrics

import (
	"sync/atomic"
	"time"
)

// Collector tracks request-level counters plus payroll run lifecycle
// transitions. All counters are monotonic since process start.
type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64
	runsCalculated  uint64
	runsApproved    uint64
	runsPosted      uint64
	runsVoided      uint64
	calcConflicts   uint64
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

func (c *Collector) RecordRunCalculated() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsCalculated, 1)
}

func (c *Collector) RecordRunApproved() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsApproved, 1)
}

func (c *Collector) RecordRunPosted() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsPosted, 1)
}

func (c *Collector) RecordRunVoided() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.runsVoided, 1)
}

func (c *Collector) RecordCalcConflict() {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.calcConflicts, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"runsCalculated":   atomic.LoadUint64(&c.runsCalculated),
		"runsApproved":     atomic.LoadUint64(&c.runsApproved),
		"runsPosted":       atomic.LoadUint64(&c.runsPosted),
		"runsVoided":       atomic.LoadUint64(&c.runsVoided),
		"calcConflicts":    atomic.LoadUint64(&c.calcConflicts),
	}
}
