package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ratepace/internal/metrics"
	"ratepace/internal/stats"

	"github.com/google/uuid"
	"github.com/jarcoal/httpmock"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type IssuerTestSuite struct {
	suite.Suite
	logger     logger.Logger
	transport  *httpmock.MockTransport
	requestLog *memoryLog
	counters   *stats.RunCounters
	issuer     *Issuer
}

func (suite *IssuerTestSuite) SetupSuite() {
	var err error
	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)
}

func (suite *IssuerTestSuite) SetupTest() {
	suite.transport = httpmock.NewMockTransport()
	suite.requestLog = &memoryLog{}
	suite.counters = stats.NewRunCounters()

	recorder, err := metrics.NewRecorder("test")
	suite.Require().NoError(err)

	suite.issuer = NewIssuer(suite.logger,
		&http.Client{Transport: suite.transport},
		suite.requestLog,
		suite.counters,
		recorder)
}

func (suite *IssuerTestSuite) TestSuccess() {
	suite.transport.RegisterResponder(http.MethodGet, "http://target.test/ok",
		httpmock.NewStringResponder(http.StatusOK, "ok"))

	suite.issuer.Issue(context.Background(), "http://target.test/ok")

	suite.Require().Equal(uint64(0), suite.counters.Errors())
	suite.Require().Equal(int64(1), suite.counters.Latency.TotalCount())
	suite.Require().Len(suite.requestLog.lines, 1)
	suite.Require().True(strings.HasPrefix(suite.requestLog.lines[0], "Response status: 200 | Duration: "))
	suite.Require().True(strings.HasSuffix(suite.requestLog.lines[0], " ms"))
	suite.Require().Equal(1, suite.transport.GetTotalCallCount())
}

func (suite *IssuerTestSuite) TestNon2xxIsNotAnError() {
	for _, status := range []int{http.StatusNotFound, http.StatusTooManyRequests, http.StatusInternalServerError} {
		suite.transport.RegisterResponder(http.MethodGet, "http://target.test/status",
			httpmock.NewStringResponder(status, ""))

		suite.issuer.Issue(context.Background(), "http://target.test/status")
	}

	suite.Require().Equal(uint64(0), suite.counters.Errors())
	suite.Require().Equal(1, suite.requestLog.count("Response status: 404 |"))
	suite.Require().Equal(1, suite.requestLog.count("Response status: 429 |"))
	suite.Require().Equal(1, suite.requestLog.count("Response status: 500 |"))
}

func (suite *IssuerTestSuite) TestTransportFailure() {
	suite.transport.RegisterResponder(http.MethodGet, "http://target.test/fail",
		httpmock.NewErrorResponder(errors.New("connection reset by peer")))

	suite.issuer.Issue(context.Background(), "http://target.test/fail")

	suite.Require().Equal(uint64(1), suite.counters.Errors())
	suite.Require().Equal(int64(1), suite.counters.Latency.TotalCount())
	suite.Require().Len(suite.requestLog.lines, 1)
	suite.Require().True(strings.HasPrefix(suite.requestLog.lines[0], "Request failed: "))
	suite.Require().Contains(suite.requestLog.lines[0], "connection reset by peer")
}

func (suite *IssuerTestSuite) TestMalformedURLIsAFailure() {
	suite.Require().NotPanics(func() {
		suite.issuer.Issue(context.Background(), "http://[::1")
	})
	suite.Require().Equal(uint64(1), suite.counters.Errors())
	suite.Require().Equal(1, suite.requestLog.count("Request failed: "))
}

func (suite *IssuerTestSuite) TestHeaders() {
	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal(http.MethodGet, r.Method)
		headers <- r.Header.Clone()
	}))
	defer server.Close()

	issuer := NewIssuer(suite.logger, NewHTTPClient(time.Second), suite.requestLog, suite.counters, nil)
	issuer.Issue(context.Background(), server.URL)

	h := <-headers
	suite.Require().Equal(UserAgent, h.Get("User-Agent"))
	_, err := uuid.Parse(h.Get("X-Request-ID"))
	suite.Require().NoError(err)
}

func (suite *IssuerTestSuite) TestTimeout() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	issuer := NewIssuer(suite.logger, NewHTTPClient(20*time.Millisecond), suite.requestLog, suite.counters, nil)
	issuer.Issue(context.Background(), server.URL)

	suite.Require().Equal(uint64(1), suite.counters.Errors())
	suite.Require().Equal(int64(0), issuer.Inflight())
}

func TestIssuerTestSuite(t *testing.T) {
	suite.Run(t, new(IssuerTestSuite))
}
