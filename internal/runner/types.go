package runner

import (
	"context"
	"io"
	"time"

	"ratepace/internal/metrics"
	"ratepace/internal/stats"
)

// State of the dispatcher. Transitions only move forward.
type State int32

const (
	StateRunning State = iota
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome tells how Run finished.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeInterrupted
)

func (o Outcome) String() string {
	if o == OutcomeInterrupted {
		return "interrupted"
	}
	return "completed"
}

type Config struct {
	TargetURL         string
	TotalRequests     int
	RequestsPerSecond int

	// Tick period, one batch per tick. Defaults to one second.
	Interval time.Duration

	// Report elapsed time is measured from StartTime. Defaults to the
	// dispatcher's creation time.
	StartTime time.Time

	// Progress lines and the report go to Out, batch errors to ErrOut.
	// Default to stdout and stderr.
	Out    io.Writer
	ErrOut io.Writer

	// Optional
	Updates SnapshotChan
	Metrics *metrics.Recorder
}

// RequestIssuer performs a single request and records its outcome. It must
// not return errors; everything is absorbed into counters and logs.
type RequestIssuer interface {
	Issue(ctx context.Context, url string)
}

// RequestLog is the append-only run log.
type RequestLog interface {
	Log(message string) error
}

// Snapshot is a point-in-time copy of run progress
type Snapshot struct {
	State      State
	Total      int
	Dispatched uint64
	Sent       uint64
	Errors     uint64
	Inflight   int64
	Elapsed    time.Duration
	Latency    stats.LatencySummary
}

// SnapshotChan is the channel type
type SnapshotChan chan Snapshot
