package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exposes run progress as prometheus metrics. A nil *Recorder is
// valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	batches  prometheus.Counter
	inflight prometheus.Gauge
}

func NewRecorder(runID string) (*Recorder, error) {
	labels := prometheus.Labels{"run_id": runID}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ratepace_requests_total",
			Help:        "Completed requests by outcome",
			ConstLabels: labels,
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ratepace_request_duration_seconds",
			Help:        "Request duration, including failed requests",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "ratepace_batches_total",
			Help:        "Dispatched batches",
			ConstLabels: labels,
		}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ratepace_requests_inflight",
			Help:        "Requests currently in flight",
			ConstLabels: labels,
		}),
	}

	for _, collector := range []prometheus.Collector{r.requests, r.duration, r.batches, r.inflight} {
		if err := r.registry.Register(collector); err != nil {
			return nil, errors.Wrap(err, "Failed to register metric")
		}
	}

	return r, nil
}

func (r *Recorder) RequestStarted() {
	if r == nil {
		return
	}
	r.inflight.Inc()
}

// RequestFinished records a completed request and releases its in-flight slot.
func (r *Recorder) RequestFinished(success bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	r.inflight.Dec()
	r.requests.With(prometheus.Labels{"outcome": outcome}).Inc()
	r.duration.Observe(d.Seconds())
}

func (r *Recorder) BatchDispatched() {
	if r == nil {
		return
	}
	r.batches.Inc()
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled. It returns once the
// listener is bound; serving continues in the background.
func (r *Recorder) Serve(ctx context.Context, addr string, loggerInstance logger.Logger) (net.Addr, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to listen on %s", addr)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			loggerInstance.WarnWith("Metrics server stopped", "err", err.Error())
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx) // nolint: errcheck
	}()

	loggerInstance.InfoWith("Serving metrics", "addr", listener.Addr().String())
	return listener.Addr(), nil
}
