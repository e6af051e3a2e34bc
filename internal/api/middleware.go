package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"querygate/internal/core"
	"querygate/internal/logger"
)

const (
	apiKeyHeader = "X-API-Key"
	sessionName  = "querygate_admin"
)

// LoggingMiddleware logs every request with its status and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		logger.Info.Printf("%s %s %d %v", r.Method, r.URL.Path, rw.status, time.Since(start))
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// SessionManager lets the browser admin panel exchange an admin API key for
// a short-lived cookie session, so the key header can be omitted afterwards.
type SessionManager struct {
	store *sessions.CookieStore
}

func NewSessionManager(secret string) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   8 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
	return &SessionManager{store: store}
}

func (s *SessionManager) isAdmin(r *http.Request) bool {
	sess, err := s.store.Get(r, sessionName)
	if err != nil {
		return false
	}
	v, ok := sess.Values["role"].(string)
	return ok && v == core.RoleAdmin
}

func (s *SessionManager) grantAdmin(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values["role"] = core.RoleAdmin
	return sess.Save(r, w)
}

func (s *SessionManager) revoke(w http.ResponseWriter, r *http.Request) {
	sess, _ := s.store.Get(r, sessionName)
	sess.Options.MaxAge = -1
	_ = sess.Save(r, w)
}

// AdminMiddleware guards the admin surface. A request passes with a valid
// admin API key, an established admin session, or when dev mode is on.
// Rejection happens before any other processing.
func (h *Handler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.devMode {
			next.ServeHTTP(w, r)
			return
		}
		if h.sessions.isAdmin(r) {
			next.ServeHTTP(w, r)
			return
		}
		if err := h.auth.ValidateAdmin(r.Header.Get(apiKeyHeader)); err != nil {
			writeError(w, err, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type sessionRequest struct {
	Token string `json:"token"`
}

// CreateSession issues an admin session cookie in exchange for a valid
// admin API key.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, core.ValidationError("invalid JSON body"), "")
		return
	}
	if err := h.auth.ValidateAdmin(req.Token); err != nil {
		writeError(w, err, "")
		return
	}
	if err := h.sessions.grantAdmin(w, r); err != nil {
		writeError(w, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "session created"})
}

// DeleteSession ends the admin session.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.revoke(w, r)
	writeJSON(w, http.StatusOK, map[string]any{"status": "session ended"})
}
