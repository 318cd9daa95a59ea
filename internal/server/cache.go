package server

import (
	"sync"

	"odds-value-alerts/internal/signals"
)

// ReportCache holds the latest cycle report for readers. The poll loop is its only
// writer.
type ReportCache struct {
	mu     sync.RWMutex
	report *signals.CycleReport
}

// NewReportCache returns an empty cache.
func NewReportCache() *ReportCache {
	return &ReportCache{}
}

// Set replaces the cached report.
func (c *ReportCache) Set(report signals.CycleReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.report = &report
}

// Latest returns the cached report, if any.
func (c *ReportCache) Latest() (signals.CycleReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.report == nil {
		return signals.CycleReport{}, false
	}
	return *c.report, true
}
