package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"daycal/internal/auth"
	"daycal/internal/config"
	"daycal/internal/feeds"
	appLog "daycal/internal/log"
	"daycal/internal/store"
)

// maxBodyBytes bounds JSON and ICS request bodies.
const maxBodyBytes = 10 << 20

// Server serves the JSON API and the HTML month page.
type Server struct {
	cfg    *config.Config
	store  *store.Store
	auth   *auth.Service
	syncer *feeds.Syncer
	mux    *http.ServeMux
	pages  *template.Template
	now    func() time.Time
}

// NewServer constructs a new Server. syncer may be nil, which disables
// /api/import.
func NewServer(cfg *config.Config, st *store.Store, authSvc *auth.Service, syncer *feeds.Syncer) (*Server, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{
		cfg:    cfg,
		store:  st,
		auth:   authSvc,
		syncer: syncer,
		mux:    http.NewServeMux(),
		pages:  pages,
		now:    time.Now,
	}
	s.registerRoutes()
	return s, nil
}

// SetClock replaces the time source. Tests only.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

// Handler returns the root handler. Unsafe cross-origin browser requests
// are rejected since the HTML forms authenticate by cookie.
func (s *Server) Handler() http.Handler {
	return http.NewCrossOriginProtection().Handler(s.mux)
}

// ListenAndServe serves on cfg.Listen until ctx is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.Handle("GET /preview.png", s.auth.Require(http.HandlerFunc(s.handlePreview)))

	// JSON API.
	s.mux.HandleFunc("POST /api/login", s.handleAPILogin)
	s.mux.Handle("POST /api/logout", s.auth.Require(http.HandlerFunc(s.handleAPILogout)))
	s.mux.Handle("GET /api/me", s.auth.Require(http.HandlerFunc(s.handleMe)))
	s.mux.Handle("GET /api/events", s.auth.Require(http.HandlerFunc(s.handleListEvents)))
	s.mux.Handle("POST /api/events", s.auth.Require(http.HandlerFunc(s.handleAddEvent)))
	s.mux.Handle("PUT /api/events", s.auth.Require(http.HandlerFunc(s.handleReplaceEvents)))
	s.mux.Handle("PUT /api/days", s.auth.Require(http.HandlerFunc(s.handleReplaceDays)))
	s.mux.Handle("GET /api/events.ics", s.auth.Require(http.HandlerFunc(s.handleExport)))
	s.mux.Handle("POST /api/import", s.auth.Require(http.HandlerFunc(s.handleImport)))
	s.mux.Handle("GET /api/calendar", s.auth.Optional(http.HandlerFunc(s.handleCalendar)))

	// HTML pages.
	s.mux.Handle("GET /{$}", s.auth.Optional(http.HandlerFunc(s.handleMonthPage)))
	s.mux.HandleFunc("GET /login", s.handleLoginPage)
	s.mux.HandleFunc("POST /login", s.handleLoginForm)
	s.mux.HandleFunc("POST /logout", s.handleLogoutForm)
	s.mux.Handle("POST /day/add", s.auth.Optional(http.HandlerFunc(s.handleDayAdd)))
	s.mux.Handle("POST /day/edit", s.auth.Optional(http.HandlerFunc(s.handleDayEdit)))
	s.mux.Handle("POST /day/delete", s.auth.Optional(http.HandlerFunc(s.handleDayDelete)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		appLog.Error("health: database ping failed", err)
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handlePreview serves the last captured PNG from disk. The image shows the
// preview user's events, so only that user may fetch it.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Preview.Enabled {
		http.NotFound(w, r)
		return
	}
	if identity(r).Username != s.cfg.Preview.User {
		writeError(w, http.StatusForbidden, "preview belongs to another user")
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.cfg.Preview.Output)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

// internalError logs err and answers 500 without leaking details.
func internalError(w http.ResponseWriter, what string, err error) {
	appLog.Error(what, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
