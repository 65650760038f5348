package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
	"github.com/pathsplit/pathsplit/internal/variant"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	store     *store.SQLiteStore
	port      int
	token     string
	tokenFile string
	router    *http.ServeMux
	startTime time.Time

	selector *variant.Selector
	chooser  *templates.Chooser
	engine   *personalize.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithRandomSource makes variant and template selection use rng.
func WithRandomSource(rng variant.RandomSource) Option {
	return func(s *Server) {
		s.selector = variant.NewSelector(rng)
		s.chooser = templates.NewChooser(rng)
	}
}

// WithEngine replaces the default personalization engine.
func WithEngine(e *personalize.Engine) Option {
	return func(s *Server) { s.engine = e }
}

// WithToken fixes the report access token instead of generating one.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

func New(s *store.SQLiteStore, port int, tokenFile string, opts ...Option) *Server {
	srv := &Server{
		store:     s,
		port:      port,
		token:     generateToken(),
		tokenFile: tokenFile,
		router:    http.NewServeMux(),
		startTime: time.Now(),
		selector:  variant.NewSelector(nil),
		chooser:   templates.NewChooser(nil),
		engine:    personalize.NewEngine(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.Handle("GET /metrics", promhttp.Handler())
	s.router.HandleFunc("POST /api/experiments/{name}/select", s.handleSelect)
	s.router.HandleFunc("POST /api/experiments/{name}/outcomes", s.handleOutcome)
	s.router.HandleFunc("POST /api/templates/render", s.handleRender)
	s.router.HandleFunc("POST /api/templates/validate", s.handleValidate)
	s.router.HandleFunc("POST /api/templates/select", s.handleTemplateSelect)

	// Reports (protected)
	s.router.Handle("GET /api/experiments", s.authMiddleware(http.HandlerFunc(s.handleListExperiments)))
	s.router.Handle("GET /api/experiments/{name}/report", s.authMiddleware(http.HandlerFunc(s.handleReport)))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	return s.StartWithOptions(ctx, true)
}

// StartQuiet starts the server without printing startup messages
func (s *Server) StartQuiet(ctx context.Context) error {
	return s.StartWithOptions(ctx, false)
}

func (s *Server) StartWithOptions(ctx context.Context, printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0600); err != nil {
			log.Warn().Err(err).Str("path", s.tokenFile).Msg("failed to write token file")
		}
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if printMessages {
		fmt.Println()
		fmt.Printf("pathsplit running on http://localhost:%d\n", s.port)
		fmt.Printf("Reports: http://localhost:%d/api/experiments?token=%s\n", s.port, s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.port).Msg("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.router)
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4e5f60718"
	}
	return hex.EncodeToString(bytes)
}
