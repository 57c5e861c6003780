// Package server exposes timeline building and live session playback over
// HTTP, with playback events streamed to browsers as server-sent events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cadre-oss/storyline/internal/archive"
	"github.com/cadre-oss/storyline/internal/config"
	"github.com/cadre-oss/storyline/internal/event"
	"github.com/cadre-oss/storyline/internal/playback"
	"github.com/cadre-oss/storyline/internal/telemetry"
	"github.com/cadre-oss/storyline/internal/timeline"
)

// Server is the storyline HTTP server.
type Server struct {
	cfg      *config.Config
	selector *timeline.Selector
	archive  *archive.Manager
	eventBus *event.Bus
	broker   *Broker
	sessions *SessionManager
	metrics  *telemetry.Metrics
	logger   *telemetry.Logger
}

// New creates a server. Players are built lazily, one per session ID.
func New(cfg *config.Config, archiveMgr *archive.Manager, eventBus *event.Bus, metrics *telemetry.Metrics, logger *telemetry.Logger) (*Server, error) {
	selector, err := timeline.SelectorFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	settings, err := playback.SettingsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	timeout, err := cfg.Server.ParsedSessionTimeout()
	if err != nil {
		return nil, fmt.Errorf("invalid session timeout: %w", err)
	}
	if metrics == nil {
		metrics = telemetry.NewMetrics()
	}
	selector.SetRecorder(metrics)

	broker := NewBroker(logger)
	// Playback events reach SSE clients through the bus.
	eventBus.Register(broker)

	newPlayer := func(sessionID string) *playback.Player {
		return playback.NewPlayer(sessionID, playback.Options{
			Selector: selector,
			Settings: settings,
			Bus:      eventBus,
			Logger:   logger,
			Metrics:  metrics,
			Archive:  archiveMgr,
		})
	}

	return &Server{
		cfg:      cfg,
		selector: selector,
		archive:  archiveMgr,
		eventBus: eventBus,
		broker:   broker,
		sessions: NewSessionManager(timeout, newPlayer, metrics, logger),
		metrics:  metrics,
		logger:   logger,
	}, nil
}

// Handler returns the routed handler wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.setupRoutes())
}

// Sessions returns the live session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting storyline server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		s.Close()
		return err
	}
}

// Close stops every session and detaches the broker from the bus.
func (s *Server) Close() {
	s.sessions.Close()
	s.eventBus.Unregister(s.broker.Name())
	s.broker.Close()
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/metrics", s.handleMetrics)

	// Stateless timeline building
	mux.HandleFunc("POST /api/timeline", s.handleBuildTimeline)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/turns", s.handleStartTurn)
	mux.HandleFunc("GET /api/sessions/{id}/turns", s.handleSessionTurns)
	mux.HandleFunc("POST /api/sessions/{id}/turns/current/answer", s.handleDeliver)

	// Archive
	mux.HandleFunc("GET /api/turns", s.handleListTurns)
	mux.HandleFunc("GET /api/turns/{id}", s.handleGetTurn)

	// SSE events
	mux.HandleFunc("GET /api/events", s.handleSSEEvents)
	mux.HandleFunc("GET /api/events/{sessionID}", s.handleSSEEventsFiltered)

	return mux
}

// corsMiddleware adds CORS headers for browser clients on other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
