package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type StatsTestSuite struct {
	suite.Suite
}

func (suite *StatsTestSuite) TestConcurrentCounters() {
	c := NewRunCounters()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.AddSent()
			if i%4 == 0 {
				c.AddError()
			}
		}(i)
	}
	wg.Wait()

	suite.Require().Equal(uint64(100), c.Sent())
	suite.Require().Equal(uint64(25), c.Errors())
}

func (suite *StatsTestSuite) TestEmptyLatencySummary() {
	suite.Require().Equal(LatencySummary{}, NewRunCounters().LatencySummary())
}

func (suite *StatsTestSuite) TestLatencySummary() {
	c := NewRunCounters()
	for i := 1; i <= 100; i++ {
		suite.Require().NoError(c.Latency.Record(time.Duration(i) * time.Millisecond))
	}

	summary := c.LatencySummary()
	suite.Require().InDelta(50, summary.P50, 0.5)
	suite.Require().InDelta(90, summary.P90, 0.5)
	suite.Require().InDelta(99, summary.P99, 0.5)
	suite.Require().InDelta(100, summary.Max, 0.5)
}

func (suite *StatsTestSuite) TestRecordClampsOutOfRange() {
	h := NewSafeHistogram()
	suite.Require().NoError(h.Record(0))
	suite.Require().NoError(h.Record(time.Hour))
	suite.Require().Equal(int64(2), h.TotalCount())
}

func TestStatsTestSuite(t *testing.T) {
	suite.Run(t, new(StatsTestSuite))
}
