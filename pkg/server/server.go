package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/m-mizutani/aria/pkg/repository"
	"github.com/m-mizutani/aria/pkg/usecase/chat"
	"github.com/m-mizutani/aria/pkg/usecase/research"
	"github.com/m-mizutani/aria/pkg/usecase/saved"
	"github.com/m-mizutani/aria/pkg/usecase/session"
	"github.com/m-mizutani/aria/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Server is the HTTP surface over the usecases. It owns no domain
// logic: handlers decode, delegate, and encode.
type Server struct {
	repo     repository.Repository
	sessions *session.UseCase
	research *research.UseCase
	chat     *chat.UseCase
	saved    *saved.UseCase

	http *http.Server
}

// New creates a new Server instance
func New(
	repo repository.Repository,
	sessions *session.UseCase,
	researchUC *research.UseCase,
	chatUC *chat.UseCase,
	savedUC *saved.UseCase,
) *Server {
	return &Server{
		repo:     repo,
		sessions: sessions,
		research: researchUC,
		chat:     chatUC,
		saved:    savedUC,
	}
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /session", s.handleCreateSession)
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /session/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /session/{id}", s.handleDeleteSession)

	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("POST /full-research", s.handleFullResearch)
	mux.HandleFunc("POST /chat", s.handleChat)

	mux.HandleFunc("GET /search-history/{id}", s.handleSearchHistory)
	mux.HandleFunc("GET /search-history-all", s.handleAllSearchHistory)

	mux.HandleFunc("POST /save-research", s.handleSaveResearch)
	mux.HandleFunc("GET /saved-research/{id}", s.handleSavedResearch)
	mux.HandleFunc("GET /saved-research-all", s.handleAllSavedResearch)
	mux.HandleFunc("DELETE /saved-research/{id}/{query}", s.handleDeleteSavedResearch)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withAccessLog(mux)
}

// Start serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.http.Shutdown(shutdownCtx)
	}()

	logging.From(ctx).Info("http server starting", "addr", addr, "storage", s.repo.Kind())
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return goerr.Wrap(err, "http server failed", goerr.V("addr", addr))
	}
	return nil
}

func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		logging.From(r.Context()).Debug("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"elapsed", time.Since(started),
		)
	})
}
