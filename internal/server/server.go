// Package server provides the voice webhook and retrieval HTTP API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kotaehq/kotae/internal/config"
	"github.com/kotaehq/kotae/internal/retriever"
	"github.com/kotaehq/kotae/internal/storage"
)

// Transcriber turns a recording URL into text, degrading to empty on failure.
type Transcriber interface {
	TranscribeURL(ctx context.Context, audioURL string) string
}

// Responder generates a caller-facing reply, degrading to the profile's
// fallback text on failure.
type Responder interface {
	Respond(ctx context.Context, profile *config.OrgProfile, transcript string, contextChunks []string) string
}

// Server is the HTTP server for voice webhooks and the retrieval API.
type Server struct {
	retriever   *retriever.Retriever
	registry    *retriever.Registry
	calls       storage.CallStore
	transcriber Transcriber
	responder   Responder
	cfg         *config.Config
	logger      *zap.Logger
	server      *http.Server
}

// NewServer creates a server with the given dependencies. Transcriber and
// responder may be nil; the voice flow then falls back to the organization
// profile's canned replies.
func NewServer(
	rtr *retriever.Retriever,
	registry *retriever.Registry,
	calls storage.CallStore,
	transcriber Transcriber,
	responder Responder,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		retriever:   rtr,
		registry:    registry,
		calls:       calls,
		transcriber: transcriber,
		responder:   responder,
		cfg:         cfg,
		logger:      logger,
	}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/voice/inbound", s.handleVoiceInbound)
	r.Post("/voice/recording", s.handleVoiceRecording)
	r.Post("/api/v1/retrieve", s.handleRetrieve)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
