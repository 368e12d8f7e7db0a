// ============================================================================
// PersonaChat - Persona-Sprachchat
// ============================================================================
//
// Package:     web
// Description: Browser front-end: HTML page, JSON API, websocket phase events
// Author:      Mike Stoffels
// Created:     2026-10-19
// License:     MIT
// ============================================================================

package web

import (
	"bufio"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/msto63/personachat/internal/llm"
	"github.com/msto63/personachat/internal/orchestrator"
	"github.com/msto63/personachat/internal/session"
	"github.com/msto63/personachat/pkg/core/health"
	"github.com/msto63/personachat/pkg/core/logging"
	"github.com/msto63/personachat/pkg/core/version"
)

// Archiver stores a session's transcript before it is cleared or evicted
type Archiver interface {
	SaveSession(ctx context.Context, sess *session.Session, personaID string) (string, error)
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	SessionIdleLimit time.Duration
	EvictionInterval time.Duration

	// SecureCookie sets the Secure flag on the session cookie
	SecureCookie bool
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:             "127.0.0.1",
		Port:             8501,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     150 * time.Second,
		SessionIdleLimit: 2 * time.Hour,
		EvictionInterval: 5 * time.Minute,
	}
}

// Deps are the collaborators of the server
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Catalog      *llm.Catalog
	Registry     *session.Registry
	// Archive is optional
	Archive Archiver
	// HealthChecks are registered in addition to http and sessions
	HealthChecks []health.Checker
}

// Server serves the chat UI
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	orch       *orchestrator.Orchestrator
	catalog    *llm.Catalog
	registry   *session.Registry
	archive    Archiver
	events     *eventHub
	health     *health.Registry
	page       *template.Template
	logger     *logging.Logger
	config     Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new web server
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Catalog == nil {
		deps.Catalog = llm.NewCatalog(nil, nil, llm.DefaultModel)
	}
	if deps.Registry == nil {
		deps.Registry = session.NewRegistry(session.Settings{
			Model:     deps.Catalog.Default(),
			VoiceMode: true,
			Autoplay:  true,
		})
	}
	def := DefaultConfig()
	if cfg.SessionIdleLimit <= 0 {
		cfg.SessionIdleLimit = def.SessionIdleLimit
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = def.EvictionInterval
	}

	page, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := logging.New("web-server")
	s := &Server{
		orch:     deps.Orchestrator,
		catalog:  deps.Catalog,
		registry: deps.Registry,
		archive:  deps.Archive,
		events:   newEventHub(),
		page:     page,
		logger:   logger,
		config:   cfg,
	}

	s.registry.OnEvict(s.evicted)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/voice", s.handleVoice)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("POST /api/settings", s.handleSettings)
	mux.HandleFunc("GET /api/replay/{index}", s.handleReplay)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /health", s.handleHealth)
	s.mux = mux

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
		Handler:      loggingMiddleware(logger, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	s.health = health.NewRegistry("personachat-web", version.Web)
	s.health.Register(health.AlwaysHealthy("http"))
	s.health.RegisterFunc("sessions", func(ctx context.Context) health.CheckResult {
		return health.CheckResult{
			Name:    "sessions",
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d active sessions", s.registry.Len()),
			Details: map[string]interface{}{"active": s.registry.Len()},
		}
	})
	for _, c := range deps.HealthChecks {
		s.health.Register(c)
	}

	return s, nil
}

// Handler returns the HTTP handler including middleware
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		logger.Info("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.statusCode,
			"duration", time.Since(start),
		)
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController and the websocket upgrader reach
// the underlying writer
func (w *responseWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack is needed for websocket upgrades through the middleware
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Start runs the server and blocks until it stops
func (s *Server) Start() error {
	s.startEviction()
	s.logger.Info("Starting PersonaChat web UI",
		"address", s.httpServer.Addr,
		"persona", s.orch.Persona().Name,
		"default_model", s.catalog.Default(),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server. Remaining sessions are archived.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping PersonaChat web UI")

	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	err := s.httpServer.Shutdown(ctx)
	s.events.closeAll()

	// Alle verbleibenden Sitzungen archivieren
	s.registry.EvictIdle(0)
	return err
}

// Address returns the server address
func (s *Server) Address() string {
	return s.httpServer.Addr
}

func (s *Server) startEviction() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.registry.RunEviction(ctx, s.config.EvictionInterval, s.config.SessionIdleLimit)
	}()
}

// evicted runs for every session removed by the registry
func (s *Server) evicted(sess *session.Session) {
	s.events.detach(sess.ID)
	if sess.Store.Len() == 0 {
		return
	}
	if err := s.archiveSession(context.Background(), sess); err != nil {
		s.logger.Warn("Failed to archive conversation", "session", sess.ID, "error", err)
	}
}

// archiveSession stores the transcript; without an archive it is a no-op
func (s *Server) archiveSession(ctx context.Context, sess *session.Session) error {
	if s.archive == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	id, err := s.archive.SaveSession(ctx, sess, s.orch.Persona().ID)
	if err != nil {
		return err
	}
	s.logger.Debug("Conversation archived", "session", sess.ID, "archive_id", id)
	return nil
}
