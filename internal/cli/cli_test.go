package cli

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ratepace/internal/params"
	"ratepace/internal/runner"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/suite"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type SessionTestSuite struct {
	suite.Suite
	logger logger.Logger
	server *httptest.Server
	hits   int64
	fs     afero.Fs
	out    *syncBuffer
	errOut *syncBuffer
}

func (suite *SessionTestSuite) SetupSuite() {
	var err error
	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)

	suite.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&suite.hits, 1)
		w.WriteHeader(http.StatusOK)
	}))
}

func (suite *SessionTestSuite) TearDownSuite() {
	suite.server.Close()
}

func (suite *SessionTestSuite) SetupTest() {
	atomic.StoreInt64(&suite.hits, 0)
	suite.fs = afero.NewMemMapFs()
	suite.out = &syncBuffer{}
	suite.errOut = &syncBuffer{}
}

func (suite *SessionTestSuite) newSession(total, rps int, mutate func(*Options)) *Session {
	options := Options{
		Params: params.Parameters{
			TargetURL:         suite.server.URL + "/",
			TotalRequests:     total,
			RequestsPerSecond: rps,
		},
		LogDir:   "logs",
		Interval: 10 * time.Millisecond,
		Fs:       suite.fs,
		Out:      suite.out,
		ErrOut:   suite.errOut,
	}
	if mutate != nil {
		mutate(&options)
	}
	return NewSession(suite.logger, options)
}

func (suite *SessionTestSuite) readRequestLog() string {
	entries, err := afero.ReadDir(suite.fs, "logs")
	suite.Require().NoError(err)
	suite.Require().Len(entries, 1)

	contents, err := afero.ReadFile(suite.fs, filepath.Join("logs", entries[0].Name()))
	suite.Require().NoError(err)
	return string(contents)
}

func (suite *SessionTestSuite) TestCompletedRun() {
	session := suite.newSession(3, 2, nil)

	outcome, err := session.Run(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal(runner.OutcomeCompleted, outcome)
	suite.Require().Equal(int64(3), atomic.LoadInt64(&suite.hits))

	out := suite.out.String()
	suite.Require().Contains(out, "All requests sent")
	suite.Require().Contains(out, "Total Requests Sent: 3\n")
	suite.Require().Contains(out, "Errors Encountered: 0\n")
	suite.Require().Empty(suite.errOut.String())

	requestLog := suite.readRequestLog()
	suite.Require().Contains(requestLog, "Run "+session.RunID()+" started | Target: "+suite.server.URL+"/")
	suite.Require().Equal(3, strings.Count(requestLog, "Response status: 200 | Duration: "))
	suite.Require().Contains(requestLog, "Performance Report:")
	suite.Require().Contains(requestLog, "Latency p50: ")
}

func (suite *SessionTestSuite) TestCancelledRunReportsOnce() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := suite.newSession(10, 1, func(options *Options) {
		options.Interval = time.Hour
	}).Run(ctx)
	suite.Require().NoError(err)
	suite.Require().Equal(runner.OutcomeInterrupted, outcome)

	out := suite.out.String()
	suite.Require().Contains(out, "Shutting down gracefully...")
	suite.Require().Equal(1, strings.Count(out, "Performance Report:"))
	suite.Require().Contains(out, "Total Requests Sent: 0\n")
	suite.Require().Zero(atomic.LoadInt64(&suite.hits))
}

func (suite *SessionTestSuite) TestInvalidMetricsAddress() {
	_, err := suite.newSession(1, 1, func(options *Options) {
		options.MetricsAddr = "not-an-address"
	}).Run(context.Background())
	suite.Require().Error(err)
	suite.Require().Zero(atomic.LoadInt64(&suite.hits))
}

func (suite *SessionTestSuite) TestLiveViewReleasesOutputAfterRun() {
	session := suite.newSession(2, 2, func(options *Options) {
		options.TUI = true
		options.ProgramOptions = []tea.ProgramOption{
			tea.WithInput(nil),
			tea.WithOutput(io.Discard),
			tea.WithoutSignalHandler(),
		}
	})

	outcome, err := session.Run(context.Background())
	suite.Require().NoError(err)
	suite.Require().Equal(runner.OutcomeCompleted, outcome)

	out := suite.out.String()
	suite.Require().Contains(out, "All requests sent")
	suite.Require().Contains(out, "Total Requests Sent: 2\n")
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

type DeferredWriterTestSuite struct {
	suite.Suite
}

func (suite *DeferredWriterTestSuite) TestBuffersUntilRelease() {
	var target bytes.Buffer
	writer := newDeferredWriter(&target)

	writer.Write([]byte("one\n")) // nolint: errcheck
	suite.Require().Empty(target.String())

	writer.Release()
	suite.Require().Equal("one\n", target.String())

	writer.Write([]byte("two\n")) // nolint: errcheck
	writer.Release()
	suite.Require().Equal("one\ntwo\n", target.String())
}

func TestDeferredWriterTestSuite(t *testing.T) {
	suite.Run(t, new(DeferredWriterTestSuite))
}
