package web

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/peterjabraham/debatable-sub001/internal/infra/api"
	"github.com/peterjabraham/debatable-sub001/internal/usecase"
)

// Server exposes the job queue and the conversation engine to the
// presentation layer.
type Server struct {
	queue  usecase.JobQueueUseCase
	conv   usecase.ConversationUseCase
	apiKey string
	log    *zerolog.Logger
	server *http.Server
}

func NewServer(queue usecase.JobQueueUseCase, conv usecase.ConversationUseCase, apiKey string, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{queue: queue, conv: conv, apiKey: apiKey, log: &l}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return s.authMiddleware(next) })

		r.Post("/jobs", s.handleSubmit)
		r.Get("/jobs/{jobID}", s.handleStatus)
		r.Delete("/jobs/{jobID}", s.handleCancel)

		r.Post("/conversations", s.handleCreateConversation)
		r.Get("/conversations", s.handleListConversations)
		r.Post("/conversations/{conversationID}/messages", s.handleUserMessage)
		r.Get("/conversations/{conversationID}/summary", s.handleSummary)
	})

	return api.Chain(r,
		api.TraceID(),
		api.Recover(s.log),
		api.RequestLog(s.log),
		api.Timeout(30*time.Second),
	)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}
	s.log.Info().Int("port", port).Msg("http server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// authMiddleware provides simple Bearer token authentication for the jobs API.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" {
			// No key configured: open access (dev setups).
			next.ServeHTTP(w, r)
			return
		}
		authHeader := r.Header.Get("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] != s.apiKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
