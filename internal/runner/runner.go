package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"ratepace/internal/stats"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"golang.org/x/sync/errgroup"
)

// Dispatcher fires one batch of requests per tick until the request budget
// is spent, then emits the report. Interruption (context cancellation or
// Stop) emits the same report without waiting for in-flight requests. The
// report is emitted at most once.
type Dispatcher struct {
	logger     logger.Logger
	cfg        Config
	issuer     RequestIssuer
	requestLog RequestLog
	counters   *stats.RunCounters

	state      int32
	dispatched uint64
	batches    sync.WaitGroup

	stopCh   chan struct{}
	stopOnce sync.Once

	reportOnce sync.Once
	report     Report

	outMu sync.Mutex

	newTicker func(time.Duration) (<-chan time.Time, func())
}

func NewDispatcher(parentLogger logger.Logger,
	cfg Config,
	issuer RequestIssuer,
	requestLog RequestLog,
	counters *stats.RunCounters) *Dispatcher {

	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StartTime.IsZero() {
		cfg.StartTime = time.Now()
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.ErrOut == nil {
		cfg.ErrOut = os.Stderr
	}

	return &Dispatcher{
		logger:     parentLogger.GetChild("dispatcher"),
		cfg:        cfg,
		issuer:     issuer,
		requestLog: requestLog,
		counters:   counters,
		state:      int32(StateRunning),
		stopCh:     make(chan struct{}),
		newTicker:  realTicker,
	}
}

func realTicker(interval time.Duration) (<-chan time.Time, func()) {
	ticker := time.NewTicker(interval)
	return ticker.C, ticker.Stop
}

// Run blocks until the budget is spent or the run is interrupted.
func (d *Dispatcher) Run(ctx context.Context) Outcome {
	d.logger.DebugWith("Starting dispatch",
		"url", d.cfg.TargetURL,
		"total", d.cfg.TotalRequests,
		"rps", d.cfg.RequestsPerSecond,
		"interval", d.cfg.Interval.String())

	// in-flight requests outlive an interruption
	requestCtx := context.WithoutCancel(ctx)

	ticks, stopTicker := d.newTicker(d.cfg.Interval)
	defer stopTicker()

	for {
		select {
		case <-ctx.Done():
			return d.interrupt()
		case <-d.stopCh:
			return d.interrupt()
		case <-ticks:
			d.dispatchBatch(requestCtx)

			if d.Dispatched() < uint64(d.cfg.TotalRequests) {
				continue
			}

			stopTicker()
			d.setState(StateStopping)
			d.publish()

			if !d.awaitBatches(ctx) {
				return d.interrupt()
			}

			d.println("All requests sent")
			d.EmitReport()
			d.setState(StateStopped)
			d.publish()
			return OutcomeCompleted
		}
	}
}

// Stop interrupts a running dispatch. It has no effect once Run returned.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
}

// EmitReport prints the report and appends it to the request log. Only the
// first call emits; every call returns the emitted report.
func (d *Dispatcher) EmitReport() Report {
	d.reportOnce.Do(func() {
		d.report = Report{
			RequestsSent:      d.counters.Sent(),
			ErrorsEncountered: d.counters.Errors(),
			Elapsed:           time.Since(d.cfg.StartTime),
			Latency:           d.counters.LatencySummary(),
		}

		d.println(d.report.String())
		d.appendLog(d.report.String())
		d.appendLog(d.report.LatencyLine())

		d.logger.DebugWith("Report emitted",
			"sent", d.report.RequestsSent,
			"errors", d.report.ErrorsEncountered,
			"elapsedMs", d.report.Elapsed.Milliseconds())
	})

	return d.report
}

func (d *Dispatcher) State() State {
	return State(atomic.LoadInt32(&d.state))
}

func (d *Dispatcher) Dispatched() uint64 {
	return atomic.LoadUint64(&d.dispatched)
}

func (d *Dispatcher) Snapshot() Snapshot {
	s := Snapshot{
		State:      d.State(),
		Total:      d.cfg.TotalRequests,
		Dispatched: d.Dispatched(),
		Sent:       d.counters.Sent(),
		Errors:     d.counters.Errors(),
		Elapsed:    time.Since(d.cfg.StartTime),
		Latency:    d.counters.LatencySummary(),
	}
	if counter, ok := d.issuer.(interface{ Inflight() int64 }); ok {
		s.Inflight = counter.Inflight()
	}
	return s
}

func (d *Dispatcher) dispatchBatch(ctx context.Context) {
	size := d.cfg.TotalRequests - int(d.Dispatched())
	if d.cfg.RequestsPerSecond < size {
		size = d.cfg.RequestsPerSecond
	}
	if size <= 0 {
		return
	}

	var group errgroup.Group
	for i := 0; i < size; i++ {
		atomic.AddUint64(&d.dispatched, 1)
		group.Go(func() error {
			return d.issue(ctx)
		})
	}

	d.cfg.Metrics.BatchDispatched()
	d.logger.DebugWith("Dispatched batch", "size", size, "dispatched", d.Dispatched())

	d.batches.Add(1)
	go func() {
		defer d.batches.Done()

		if err := group.Wait(); err != nil {
			d.logger.WarnWith("Batch failed", "err", err.Error())
			d.printErr(fmt.Sprintf("Error in batch: %s", err.Error()))
		}

		d.println(fmt.Sprintf("Sent %d requests so far", d.counters.Sent()))
		d.publish()
	}()

	d.publish()
}

// issue runs one request. A panic is recovered, counted as an error and
// surfaced to the batch.
func (d *Dispatcher) issue(ctx context.Context) (err error) {
	defer d.counters.AddSent()
	defer func() {
		if r := recover(); r != nil {
			d.counters.AddError()
			err = errors.Errorf("request to %s panicked: %v", d.cfg.TargetURL, r)
		}
	}()

	d.issuer.Issue(ctx, d.cfg.TargetURL)
	return nil
}

// awaitBatches waits for outstanding batches. It returns false if the run is
// interrupted first.
func (d *Dispatcher) awaitBatches(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		d.batches.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	case <-d.stopCh:
		return false
	}
}

func (d *Dispatcher) interrupt() Outcome {
	d.setState(StateStopping)
	d.logger.DebugWith("Interrupted", "dispatched", d.Dispatched(), "sent", d.counters.Sent())

	d.println("Shutting down gracefully...")
	d.EmitReport()
	d.setState(StateStopped)
	d.publish()
	return OutcomeInterrupted
}

func (d *Dispatcher) setState(s State) {
	atomic.StoreInt32(&d.state, int32(s))
}

// publish pushes a snapshot without blocking; updates are dropped when the
// consumer lags.
func (d *Dispatcher) publish() {
	if d.cfg.Updates == nil {
		return
	}
	select {
	case d.cfg.Updates <- d.Snapshot():
	default:
	}
}

func (d *Dispatcher) println(line string) {
	d.write(d.cfg.Out, line)
}

func (d *Dispatcher) printErr(line string) {
	d.write(d.cfg.ErrOut, line)
}

func (d *Dispatcher) write(w io.Writer, line string) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	fmt.Fprintln(w, line)
}

func (d *Dispatcher) appendLog(message string) {
	if err := d.requestLog.Log(message); err != nil {
		d.logger.WarnWith("Failed to write request log", "err", err.Error())
	}
}
