package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/parley/internal/auth"
	"github.com/MikeSquared-Agency/parley/internal/chat"
	"github.com/MikeSquared-Agency/parley/internal/relay"
	"github.com/MikeSquared-Agency/parley/internal/render"
	"github.com/MikeSquared-Agency/parley/internal/store"
)

// Exchanger streams one model reply to out and records it.
type Exchanger interface {
	Provider() string
	Stream(ctx context.Context, userID uuid.UUID, req chat.Request, out relay.Output) relay.Result
}

type ChatLister interface {
	ListChats(ctx context.Context, userID uuid.UUID, limit int) ([]store.Chat, error)
}

type Accounts interface {
	Signup(ctx context.Context, email, password, name string) (auth.User, error)
	Login(ctx context.Context, email, password string) (store.Session, auth.User, error)
	Logout(ctx context.Context, token string) error
	Middleware(next http.Handler) http.Handler
	Optional(next http.Handler) http.Handler
}

type Deps struct {
	Exchanges    Exchanger
	Chats        ChatLister
	Accounts     Accounts
	Renderer     *render.Renderer
	// HistoryLimit is clamped to chat.MaxHistory.
	HistoryLimit int
	// RatePerMinute and RateBurst bound POST /chat per user.
	RatePerMinute int
	RateBurst     int
}

type Server struct {
	router *chi.Mux
	http   *http.Server

	exchanges    Exchanger
	chats        ChatLister
	accounts     Accounts
	renderer     *render.Renderer
	historyLimit int
	limiter      *userLimiter
}

func NewServer(port int, d Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	historyLimit := d.HistoryLimit
	if historyLimit <= 0 || historyLimit > chat.MaxHistory {
		historyLimit = chat.MaxHistory
	}

	s := &Server{
		router:       router,
		exchanges:    d.Exchanges,
		chats:        d.Chats,
		accounts:     d.Accounts,
		renderer:     d.Renderer,
		historyLimit: historyLimit,
		limiter:      newUserLimiter(d.RatePerMinute, d.RateBurst),
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.With(s.accounts.Optional).Get("/", s.home)
	router.Get("/health", s.health)
	router.Get("/api/v1/parley/status", s.status)

	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", s.signup)
		r.Post("/login", s.login)
		r.Post("/logout", s.logout)
	})

	router.Group(func(r chi.Router) {
		r.Use(s.accounts.Middleware)
		r.With(s.rateLimit).Post("/chat", s.chat)
		r.Get("/history", s.history)
		r.Get("/history/view", s.historyView)
		r.Post("/render", s.render)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service":  "parley",
		"provider": s.exchanges.Provider(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "Internal server error",
		"details": err.Error(),
	})
}
