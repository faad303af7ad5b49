package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mlcomp/mlboard/pkg/board"
	"github.com/mlcomp/mlboard/pkg/config"
	"github.com/mlcomp/mlboard/pkg/preferences"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the board API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the address the server listens on once started.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	board      *board.Board
	prefs      preferences.Store
	refresher  *refresher
	limiter    *rateLimiterMap
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new board API server. The board is loaded once the
// server is listening and then every refresh interval.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	b *board.Board,
) Server {
	return &server{
		log:   log.WithField("component", "api"),
		cfg:   cfg,
		board: b,
		done:  make(chan struct{}),
	}
}

// Start opens the preference store, starts the HTTP server and then the
// background loading of the board.
func (s *server) Start(ctx context.Context) error {
	s.prefs = preferences.NewStore(s.log, &s.cfg.Preferences.Database)
	if err := s.prefs.Start(ctx); err != nil {
		return fmt.Errorf("starting preference store: %w", err)
	}

	if s.cfg.API.Server.RateLimit.Enabled {
		s.limiter = newRateLimiterMap(
			s.cfg.API.Server.RateLimit.RequestsPerMinute, s.done,
		)
	}

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.API.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.API.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.API.Server.Listen, err)
	}

	s.listener = ln

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", ln.Addr().String()).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	// Load AFTER the API is listening so that the server is reachable
	// while the first (potentially slow) fetch runs.
	s.refresher = newRefresher(s.log, s.board, s.cfg.API.RefreshInterval)
	if err := s.refresher.Start(ctx); err != nil {
		return fmt.Errorf("starting refresher: %w", err)
	}

	return nil
}

// Addr returns the listen address, resolved once the server is started.
func (s *server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}

	return s.cfg.API.Server.Listen
}

// Stop gracefully shuts down the HTTP server and closes the store.
func (s *server) Stop() error {
	close(s.done)

	if s.refresher != nil {
		if err := s.refresher.Stop(); err != nil {
			s.log.WithError(err).Warn("Refresher stop error")
		}
	}

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.prefs != nil {
		if err := s.prefs.Stop(); err != nil {
			return fmt.Errorf("stopping preference store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
