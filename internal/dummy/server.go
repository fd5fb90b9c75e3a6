package dummy

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nuclio/errors"
	"github.com/nuclio/logger"
)

type ServerConfig struct {
	Port int

	// Probability that /flaky answers 500. Defaults to 0.2.
	FailureRate float64

	// Bounds of the /slow delay. Default to one and two seconds.
	SlowMin time.Duration
	SlowMax time.Duration

	// Seed for the jitter source, zero means time based
	Seed int64
}

// Server is a local target for trying out runs.
type Server struct {
	logger logger.Logger
	cfg    ServerConfig

	randLock sync.Mutex
	rand     *rand.Rand
}

func NewServer(parentLogger logger.Logger, cfg ServerConfig) *Server {
	if cfg.FailureRate <= 0 {
		cfg.FailureRate = 0.2
	}
	if cfg.SlowMin <= 0 {
		cfg.SlowMin = time.Second
	}
	if cfg.SlowMax < cfg.SlowMin {
		cfg.SlowMax = 2 * cfg.SlowMin
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Server{
		logger: parentLogger.GetChild("dummy"),
		cfg:    cfg,
		rand:   rand.New(rand.NewSource(cfg.Seed)),
	}
}

// Handler serves:
//
//	/fast          10-50ms, 200
//	/slow          SlowMin-SlowMax, 200
//	/status/{code} the given status code
//	/flaky         500 with FailureRate probability, 200 otherwise
//	/drop          closes the connection without answering
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /fast", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(s.jitter(10*time.Millisecond, 50*time.Millisecond))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Fast response")) // nolint: errcheck
	})

	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(s.jitter(s.cfg.SlowMin, s.cfg.SlowMax)):
		case <-r.Context().Done():
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Slow response")) // nolint: errcheck
	})

	mux.HandleFunc("GET /status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "Invalid status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
		fmt.Fprintf(w, "%d %s", code, http.StatusText(code))
	})

	mux.HandleFunc("GET /flaky", func(w http.ResponseWriter, r *http.Request) {
		if s.float() < s.cfg.FailureRate {
			http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK")) // nolint: errcheck
	})

	mux.HandleFunc("GET /drop", func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		if !ok {
			http.Error(w, "Connection cannot be dropped", http.StatusInternalServerError)
			return
		}
		conn, _, err := hijacker.Hijack()
		if err != nil {
			s.logger.WarnWith("Failed to hijack connection", "err", err.Error())
			return
		}
		conn.Close() // nolint: errcheck
	})

	return mux
}

// Start listens on the configured port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) (net.Addr, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to listen on port %d", s.cfg.Port)
	}

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorWith("Server failed", "err", err.Error())
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.WarnWith("Failed to shut down gracefully", "err", err.Error())
		}
	}()

	s.logger.InfoWith("Dummy server listening", "addr", listener.Addr().String())
	return listener.Addr(), nil
}

func (s *Server) jitter(low, high time.Duration) time.Duration {
	if high <= low {
		return low
	}
	s.randLock.Lock()
	defer s.randLock.Unlock()
	return low + time.Duration(s.rand.Int63n(int64(high-low)))
}

func (s *Server) float() float64 {
	s.randLock.Lock()
	defer s.randLock.Unlock()
	return s.rand.Float64()
}
