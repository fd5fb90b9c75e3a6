package runner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"ratepace/internal/metrics"
	"ratepace/internal/stats"

	"github.com/google/uuid"
	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

const UserAgent = "ratepace/1.0"

// NewHTTPClient returns a client tuned for many concurrent requests to a
// single host.
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

// Issuer sends one GET per call and logs the outcome. Transport failures
// count as errors; any HTTP status, including 4xx and 5xx, is a response.
type Issuer struct {
	logger     logger.Logger
	client     *http.Client
	requestLog RequestLog
	counters   *stats.RunCounters
	metrics    *metrics.Recorder

	inflight int64
}

func NewIssuer(parentLogger logger.Logger,
	client *http.Client,
	requestLog RequestLog,
	counters *stats.RunCounters,
	recorder *metrics.Recorder) *Issuer {

	return &Issuer{
		logger:     parentLogger.GetChild("issuer"),
		client:     client,
		requestLog: requestLog,
		counters:   counters,
		metrics:    recorder,
	}
}

func (i *Issuer) Issue(ctx context.Context, url string) {
	atomic.AddInt64(&i.inflight, 1)
	defer atomic.AddInt64(&i.inflight, -1)
	i.metrics.RequestStarted()

	start := time.Now()
	status, err := i.get(ctx, url)
	duration := time.Since(start)

	i.counters.Latency.Record(duration) // nolint: errcheck
	i.metrics.RequestFinished(err == nil, duration)

	if err != nil {
		i.counters.AddError()
		i.log(fmt.Sprintf("Request failed: %s", err.Error()))
		return
	}

	i.log(fmt.Sprintf("Response status: %d | Duration: %d ms", status, duration.Milliseconds()))
}

func (i *Issuer) Inflight() int64 {
	return atomic.LoadInt64(&i.inflight)
}

func (i *Issuer) get(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := i.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return 0, errors.Errorf("Failed to read response body: %s", err.Error())
	}

	return resp.StatusCode, nil
}

func (i *Issuer) log(message string) {
	if err := i.requestLog.Log(message); err != nil {
		i.logger.WarnWith("Failed to write request log", "err", err.Error())
	}
}
