package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nuclio/logger"
)

// Coordinator turns termination signals into context cancellation. It never
// touches run state itself; whoever watches the context decides what a
// shutdown means.
type Coordinator struct {
	logger  logger.Logger
	signals chan os.Signal
	notify  bool
}

// NewCoordinator listens for SIGINT and SIGTERM.
func NewCoordinator(parentLogger logger.Logger) *Coordinator {
	return &Coordinator{
		logger:  parentLogger.GetChild("shutdown"),
		signals: make(chan os.Signal, 1),
		notify:  true,
	}
}

// newCoordinatorWithChannel is used by tests to deliver signals directly.
func newCoordinatorWithChannel(parentLogger logger.Logger, signals chan os.Signal) *Coordinator {
	return &Coordinator{
		logger:  parentLogger.GetChild("shutdown"),
		signals: signals,
	}
}

// Watch returns a context cancelled on the first signal received. The
// returned stop function releases the signal subscription.
func (c *Coordinator) Watch(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	if c.notify {
		signal.Notify(c.signals, os.Interrupt, syscall.SIGTERM)
	}

	go func() {
		select {
		case sig := <-c.signals:
			c.logger.DebugWith("Received signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		if c.notify {
			signal.Stop(c.signals)
		}
		cancel()
	}
}
