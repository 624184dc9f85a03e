package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"daycal/internal/auth"
	"daycal/internal/calendar"
	appLog "daycal/internal/log"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageData struct {
	View  monthView
	Error string
}

type loginData struct {
	Username string
	Error    string
}

func parsePages() (*template.Template, error) {
	funcs := template.FuncMap{
		"cellClass": cellClass,
		"dayURL":    dayURL,
		"monthURL":  monthURL,
	}
	t, err := template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	return t, nil
}

func cellClass(c calendar.Cell) string {
	if c.Blank() {
		return "blank"
	}
	classes := []string{"day", c.Weekend.String()}
	if c.IsToday {
		classes = append(classes, "today")
	}
	if c.IsSelected {
		classes = append(classes, "selected")
	}
	if c.EventCount > 0 {
		classes = append(classes, "has-events")
	}
	return strings.Join(classes, " ")
}

func monthURL(year, month int) string {
	return "/?" + url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(month)},
	}.Encode()
}

func dayURL(year, month, day int) string {
	return "/?" + url.Values{
		"year":  {strconv.Itoa(year)},
		"month": {strconv.Itoa(month)},
		"day":   {strconv.Itoa(day)},
	}.Encode()
}

// render executes into a buffer first so template errors become a clean 500.
func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.pages.ExecuteTemplate(&buf, name, data); err != nil {
		appLog.Error("template render failed", err, "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleMonthPage(w http.ResponseWriter, r *http.Request) {
	mq, err := s.parseMonthQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.buildMonthView(r.Context(), mq)
	if err != nil {
		appLog.Error("month page failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "month.html", pageData{View: view})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "login.html", loginData{})
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	sess, err := s.auth.Login(r.Context(), username, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		s.render(w, http.StatusUnauthorized, "login.html", loginData{Username: username, Error: "Invalid username or password"})
		return
	}
	if err != nil {
		appLog.Error("login failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogoutForm(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), auth.TokenFromRequest(r)); err != nil {
		appLog.Error("logout failed", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// dayForm is the common part of the day mutation forms.
type dayForm struct {
	userID string
	key    calendar.DayKey
	text   string
	index  int
}

// parseDayForm returns false after answering the request itself.
func (s *Server) parseDayForm(w http.ResponseWriter, r *http.Request, needIndex bool) (dayForm, bool) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return dayForm{}, false
	}

	atoi := func(name string) int {
		n, err := strconv.Atoi(r.PostFormValue(name))
		if err != nil {
			return -1
		}
		return n
	}
	key, err := dayKey(atoi("year"), atoi("month"), atoi("day"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return dayForm{}, false
	}

	f := dayForm{userID: id.UserID, key: key, text: strings.TrimSpace(r.PostFormValue("event"))}
	if needIndex {
		f.index = atoi("index")
		if f.index < 0 {
			http.Error(w, "invalid index", http.StatusBadRequest)
			return dayForm{}, false
		}
	}
	return f, true
}

func (s *Server) redirectToDay(w http.ResponseWriter, r *http.Request, key calendar.DayKey) {
	http.Redirect(w, r, dayURL(key.Year, int(key.Month), key.Day), http.StatusSeeOther)
}

func (s *Server) handleDayAdd(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseDayForm(w, r, false)
	if !ok {
		return
	}
	if f.text == "" {
		http.Error(w, "event text is required", http.StatusBadRequest)
		return
	}
	if _, err := s.store.AppendEvent(r.Context(), f.userID, f.key, f.text); err != nil {
		appLog.Error("add event failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.redirectToDay(w, r, f.key)
}

func (s *Server) handleDayEdit(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseDayForm(w, r, true)
	if !ok {
		return
	}
	if f.text == "" {
		http.Error(w, "event text is required", http.StatusBadRequest)
		return
	}
	s.updateDay(w, r, f, func(events []string) []string {
		events[f.index] = f.text
		return events
	})
}

func (s *Server) handleDayDelete(w http.ResponseWriter, r *http.Request) {
	f, ok := s.parseDayForm(w, r, true)
	if !ok {
		return
	}
	s.updateDay(w, r, f, func(events []string) []string {
		return slices.Delete(events, f.index, f.index+1)
	})
}

var errBadIndex = errors.New("invalid index")

// updateDay applies change to the day's list in one store transaction.
func (s *Server) updateDay(w http.ResponseWriter, r *http.Request, f dayForm, change func([]string) []string) {
	_, err := s.store.UpdateDay(r.Context(), f.userID, f.key, func(events []string) ([]string, error) {
		if f.index >= len(events) {
			return nil, errBadIndex
		}
		return change(events), nil
	})
	if errors.Is(err, errBadIndex) {
		http.Error(w, errBadIndex.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		appLog.Error("update day failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.redirectToDay(w, r, f.key)
}
