package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"daycal/internal/auth"
	"daycal/internal/calendar"
	"daycal/internal/ics"
	appLog "daycal/internal/log"
	"daycal/internal/model"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type addEventRequest struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Day   int    `json:"day"`
	Event string `json:"event"`
}

type replaceEventsRequest struct {
	Year   int      `json:"year"`
	Month  int      `json:"month"`
	Day    int      `json:"day"`
	Events []string `json:"events"`
}

type meResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type replaceDaysResponse struct {
	Updated int      `json:"updated"`
	Skipped []string `json:"skipped"`
}

type importResponse struct {
	SourceID    string   `json:"source_id"`
	Occurrences int      `json:"occurrences"`
	Imported    int      `json:"imported"`
	Truncated   []string `json:"truncated_uids,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// identity is only called behind auth.Require.
func identity(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// POST /api/login {username, password} -> {token, expires_at}
func (s *Server) handleAPILogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		internalError(w, "api login failed", err)
		return
	}
	appLog.Info("user logged in", "user", strings.TrimSpace(req.Username))
	writeJSON(w, http.StatusOK, loginResponse{Token: sess.Token, ExpiresAt: sess.ExpiresAt})
}

func (s *Server) handleAPILogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), identity(r).Token); err != nil {
		internalError(w, "api logout failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := s.store.UserByID(r.Context(), identity(r).UserID)
	if err != nil {
		internalError(w, "load user failed", err)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt})
}

// GET /api/events?year=2024&month=3 returns the day documents of one month.
// Month is 1-based.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	mq, err := s.parseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	docs, err := s.store.MonthDocs(r.Context(), identity(r).UserID, mq.Year, mq.Month)
	if err != nil {
		internalError(w, "list events failed", err)
		return
	}
	if docs == nil {
		docs = []model.DayDoc{}
	}
	writeJSON(w, http.StatusOK, docs)
}

// POST /api/events {year, month, day, event} appends one event to the day.
func (s *Server) handleAddEvent(w http.ResponseWriter, r *http.Request) {
	var req addEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := dayKey(req.Year, req.Month, req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	text := strings.TrimSpace(req.Event)
	if text == "" {
		writeError(w, http.StatusBadRequest, "event text is required")
		return
	}

	doc, err := s.store.AppendEvent(r.Context(), identity(r).UserID, key, text)
	if err != nil {
		internalError(w, "add event failed", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// PUT /api/events {year, month, day, events} replaces the day's list.
func (s *Server) handleReplaceEvents(w http.ResponseWriter, r *http.Request) {
	var req replaceEventsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := dayKey(req.Year, req.Month, req.Day)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.store.ReplaceEvents(r.Context(), identity(r).UserID, key, req.Events)
	if err != nil {
		internalError(w, "replace events failed", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// PUT /api/days {"2024-3-15": [...], ...} replaces every listed day. Keys
// that are not real dates are skipped and reported.
func (s *Server) handleReplaceDays(w http.ResponseWriter, r *http.Request) {
	var req map[string][]string
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, skipped := calendar.EventsMapFromStrings(req)
	for key := range days {
		if _, err := dayKey(key.Year, int(key.Month), key.Day); err != nil {
			delete(days, key)
			skipped = append(skipped, key.String())
		}
	}
	slices.Sort(skipped)
	if skipped == nil {
		skipped = []string{}
	}

	n, err := s.store.ReplaceDays(r.Context(), identity(r).UserID, days)
	if err != nil {
		internalError(w, "replace days failed", err)
		return
	}
	if len(skipped) > 0 {
		appLog.Warn("bulk update skipped keys", "user", identity(r).Username, "skipped", len(skipped))
	}
	writeJSON(w, http.StatusOK, replaceDaysResponse{Updated: n, Skipped: skipped})
}

// GET /api/calendar?year=&month=&day= returns the composed month view.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	mq, err := s.parseMonthQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	view, err := s.buildMonthView(r.Context(), mq)
	if err != nil {
		internalError(w, "calendar view failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GET /api/events.ics exports every stored event as all-day VEVENTs.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	docs, err := s.store.ListAll(r.Context(), id.UserID)
	if err != nil {
		internalError(w, "export failed", err)
		return
	}
	body := ics.Export(id.Username, docs, s.now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="daycal-%s.ics"`, id.Username))
	_, _ = io.WriteString(w, body)
}

// POST /api/import?source=&from=YYYY-MM-DD&to=YYYY-MM-DD imports an ICS
// body. The window defaults to the feed window.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.syncer == nil {
		writeError(w, http.StatusNotImplemented, "import is disabled")
		return
	}

	q := r.URL.Query()
	from, to := s.syncer.Window()
	var err error
	if from, err = parseDateParam(q.Get("from"), from, s.cfg.Location()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if v := q.Get("to"); v != "" {
		if to, err = parseDateParam(v, to, s.cfg.Location()); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Inclusive: the whole "to" day counts.
		to = to.AddDate(0, 0, 1).Add(-time.Second)
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}
	source := q.Get("source")
	if source == "" {
		source = "upload"
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}

	res, err := s.syncer.ImportBody(r.Context(), identity(r).UserID, source, body, from, to)
	if err != nil {
		appLog.Warn("import rejected", "user", identity(r).Username, "reason", err.Error())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		SourceID:    res.SourceID,
		Occurrences: res.Occurrences,
		Imported:    res.Imported,
		Truncated:   res.Truncated,
	})
}

func parseDateParam(v string, def time.Time, loc *time.Location) (time.Time, error) {
	if v == "" {
		return def, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return def, fmt.Errorf("invalid date %q, want YYYY-MM-DD", v)
	}
	return t, nil
}
