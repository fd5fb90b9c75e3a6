package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"ratepace/internal/metrics"
	"ratepace/internal/params"
	"ratepace/internal/requestlog"
	"ratepace/internal/runner"
	"ratepace/internal/stats"
	"ratepace/internal/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/spf13/afero"
)

type Options struct {
	Params params.Parameters

	// Per-request timeout
	Timeout time.Duration

	// Directory of the daily request log
	LogDir string

	// Serve prometheus metrics on this address when set
	MetricsAddr string

	// Show the live view instead of plain progress lines
	TUI bool

	// Tick period, defaults to one second
	Interval time.Duration

	Fs     afero.Fs
	Out    io.Writer
	ErrOut io.Writer
	Now    func() time.Time

	// Options passed to the live view program
	ProgramOptions []tea.ProgramOption
}

// Session wires the components of a single run together.
type Session struct {
	logger  logger.Logger
	options Options
	runID   string
}

func NewSession(parentLogger logger.Logger, options Options) *Session {
	if options.Fs == nil {
		options.Fs = afero.NewOsFs()
	}
	if options.LogDir == "" {
		options.LogDir = "."
	}
	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}
	if options.Out == nil {
		options.Out = os.Stdout
	}
	if options.ErrOut == nil {
		options.ErrOut = os.Stderr
	}
	if options.Now == nil {
		options.Now = time.Now
	}

	runID := uuid.NewString()

	return &Session{
		logger:  parentLogger.GetChild("session").GetChild(runID[:8]),
		options: options,
		runID:   runID,
	}
}

func (s *Session) RunID() string {
	return s.runID
}

// Run performs the run until the request budget is spent or ctx is
// cancelled. An error is returned only if the run could not start.
func (s *Session) Run(ctx context.Context) (runner.Outcome, error) {
	startTime := s.options.Now()
	p := s.options.Params

	recorder, err := metrics.NewRecorder(s.runID)
	if err != nil {
		return runner.OutcomeInterrupted, errors.Wrap(err, "Failed to create metrics recorder")
	}

	// the metrics endpoint stays up for the whole run, signals included
	serveCtx, cancelServe := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelServe()

	if s.options.MetricsAddr != "" {
		if _, err := recorder.Serve(serveCtx, s.options.MetricsAddr, s.logger); err != nil {
			return runner.OutcomeInterrupted, errors.Wrap(err, "Failed to serve metrics")
		}
	}

	requestLog := requestlog.New(s.options.Fs, s.options.LogDir, s.options.Now)
	counters := stats.NewRunCounters()
	issuer := runner.NewIssuer(s.logger,
		runner.NewHTTPClient(s.options.Timeout),
		requestLog,
		counters,
		recorder)

	s.logger.DebugWith("Starting run",
		"runID", s.runID,
		"url", p.RequestURL(),
		"total", p.TotalRequests,
		"rps", p.RequestsPerSecond,
		"requestLog", requestLog.Path())

	if err := requestLog.Log(fmt.Sprintf("Run %s started | Target: %s | Total requests: %d | Requests per second: %d",
		s.runID,
		p.TargetURL,
		p.TotalRequests,
		p.RequestsPerSecond)); err != nil {
		s.logger.WarnWith("Failed to write request log", "err", err.Error())
	}

	cfg := runner.Config{
		TargetURL:         p.RequestURL(),
		TotalRequests:     p.TotalRequests,
		RequestsPerSecond: p.RequestsPerSecond,
		Interval:          s.options.Interval,
		StartTime:         startTime,
		Out:               s.options.Out,
		ErrOut:            s.options.ErrOut,
		Metrics:           recorder,
	}

	if !s.options.TUI {
		dispatcher := runner.NewDispatcher(s.logger, cfg, issuer, requestLog, counters)
		return dispatcher.Run(ctx), nil
	}

	return s.runWithLiveView(ctx, cfg, issuer, requestLog, counters), nil
}

// runWithLiveView holds back the dispatcher's output while the live view
// owns the terminal and releases it once the view is gone.
func (s *Session) runWithLiveView(ctx context.Context,
	cfg runner.Config,
	issuer *runner.Issuer,
	requestLog *requestlog.Logger,
	counters *stats.RunCounters) runner.Outcome {

	out := newDeferredWriter(cfg.Out)
	errOut := newDeferredWriter(cfg.ErrOut)
	cfg.Out = out
	cfg.ErrOut = errOut
	cfg.Updates = make(runner.SnapshotChan, 100)

	dispatcher := runner.NewDispatcher(s.logger, cfg, issuer, requestLog, counters)

	model := tui.NewModel(cfg.TargetURL, cfg.TotalRequests, cfg.RequestsPerSecond, cfg.Updates, dispatcher)
	programOptions := append([]tea.ProgramOption{tea.WithAltScreen()}, s.options.ProgramOptions...)
	program := tea.NewProgram(model, programOptions...)

	outcomes := make(chan runner.Outcome, 1)
	go func() {
		outcome := dispatcher.Run(ctx)
		outcomes <- outcome
		program.Send(tui.DoneMsg{Outcome: outcome})
	}()

	if _, err := program.Run(); err != nil {
		s.logger.WarnWith("Live view stopped", "err", err.Error())
	}

	out.Release()
	errOut.Release()

	return <-outcomes
}
