package stats

import (
	"sync/atomic"
	"time"
)

// RunCounters are shared by the dispatcher and every in-flight request.
// Values only ever grow.
type RunCounters struct {
	sent   uint64
	errors uint64

	// Durations of every completed request, successful or not.
	Latency *SafeHistogram
}

func NewRunCounters() *RunCounters {
	return &RunCounters{
		Latency: NewSafeHistogram(),
	}
}

// AddSent counts one completed request.
func (c *RunCounters) AddSent() {
	atomic.AddUint64(&c.sent, 1)
}

func (c *RunCounters) AddError() {
	atomic.AddUint64(&c.errors, 1)
}

func (c *RunCounters) Sent() uint64 {
	return atomic.LoadUint64(&c.sent)
}

func (c *RunCounters) Errors() uint64 {
	return atomic.LoadUint64(&c.errors)
}

// LatencySummary holds percentiles in milliseconds.
type LatencySummary struct {
	P50 float64
	P90 float64
	P99 float64
	Max float64
}

func (c *RunCounters) LatencySummary() LatencySummary {
	if c.Latency.TotalCount() == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		P50: usToMs(c.Latency.ValueAtQuantile(50)),
		P90: usToMs(c.Latency.ValueAtQuantile(90)),
		P99: usToMs(c.Latency.ValueAtQuantile(99)),
		Max: usToMs(c.Latency.Max()),
	}
}

func usToMs(us int64) float64 {
	return float64(time.Duration(us)*time.Microsecond) / float64(time.Millisecond)
}
