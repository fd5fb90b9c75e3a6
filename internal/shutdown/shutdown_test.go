package shutdown

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/nuclio/logger"
	nucliozap "github.com/nuclio/zap"
	"github.com/stretchr/testify/suite"
)

type CoordinatorTestSuite struct {
	suite.Suite
	logger logger.Logger
}

func (suite *CoordinatorTestSuite) SetupSuite() {
	var err error
	suite.logger, err = nucliozap.NewNuclioZapTest("test")
	suite.Require().NoError(err)
}

func (suite *CoordinatorTestSuite) TestSignalCancels() {
	for _, sig := range []os.Signal{os.Interrupt, syscall.SIGTERM} {
		signals := make(chan os.Signal, 1)
		ctx, stop := newCoordinatorWithChannel(suite.logger, signals).Watch(context.Background())

		signals <- sig

		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
			suite.Fail("context not cancelled", sig.String())
		}
		stop()
	}
}

func (suite *CoordinatorTestSuite) TestStopWithoutSignal() {
	signals := make(chan os.Signal, 1)
	ctx, stop := newCoordinatorWithChannel(suite.logger, signals).Watch(context.Background())

	suite.Require().NoError(ctx.Err())
	stop()
	suite.Require().ErrorIs(ctx.Err(), context.Canceled)
}

func (suite *CoordinatorTestSuite) TestParentCancellation() {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, stop := newCoordinatorWithChannel(suite.logger, make(chan os.Signal, 1)).Watch(parent)
	defer stop()

	cancelParent()
	<-ctx.Done()
}

func TestCoordinatorTestSuite(t *testing.T) {
	suite.Run(t, new(CoordinatorTestSuite))
}
