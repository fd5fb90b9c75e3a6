package runner

import (
	"fmt"
	"time"

	"ratepace/internal/stats"
)

// Report summarises a finished (or interrupted) run.
type Report struct {
	RequestsSent      uint64
	ErrorsEncountered uint64
	Elapsed           time.Duration
	Latency           stats.LatencySummary
}

// String renders the fixed report template. It starts and ends with a
// newline.
func (r Report) String() string {
	return fmt.Sprintf(`
Performance Report:
---------------------
Total Requests Sent: %d
Errors Encountered: %d
Total Time Taken: %d ms
`, r.RequestsSent, r.ErrorsEncountered, r.Elapsed.Milliseconds())
}

func (r Report) LatencyLine() string {
	return fmt.Sprintf("Latency p50: %.2f ms | p90: %.2f ms | p99: %.2f ms | max: %.2f ms",
		r.Latency.P50, r.Latency.P90, r.Latency.P99, r.Latency.Max)
}
