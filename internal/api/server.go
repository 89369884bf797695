package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/driftexport/internal/export"
	"github.com/MikeSquared-Agency/driftexport/internal/store"
)

const defaultListLimit = 50

// Reports exposes the most recent export run.
type Reports interface {
	LastReport() *export.RunReport
}

// Conversations is the read side of the conversations table.
type Conversations interface {
	Get(ctx context.Context, id int64) (*export.Conversation, error)
	List(ctx context.Context, limit int) ([]export.Conversation, error)
	Count(ctx context.Context) (int, error)
}

type Server struct {
	router        *chi.Mux
	port          int
	reports       Reports
	conversations Conversations
}

func NewServer(port int, reports Reports, conversations Conversations) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:        router,
		port:          port,
		reports:       reports,
		conversations: conversations,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/export/status", s.status)
	router.Get("/api/v1/conversations", s.listConversations)
	router.Get("/api/v1/conversations/{id}", s.getConversation)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	stored, err := s.conversations.Count(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent":    "driftexport",
		"stored":   stored,
		"last_run": s.reports.LastReport(),
	})
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	convos, err := s.conversations.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if convos == nil {
		convos = []export.Conversation{}
	}
	writeJSON(w, http.StatusOK, convos)
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	c, err := s.conversations.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
