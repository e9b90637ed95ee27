package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/service"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "portal_sid"

// SessionServiceInterface defines the interface for portal session operations.
type SessionServiceInterface interface {
	Begin(ctx context.Context) (session.Session, error)
	Current(ctx context.Context, sid string) (session.Session, error)
	Login(ctx context.Context, sid string, creds session.Credentials) (*service.LoginOutcome, error)
	RefreshCaptcha(ctx context.Context, sid string) (string, error)
	DismissError(ctx context.Context, sid string) error
	Logout(ctx context.Context, sid string) error
	DashboardStats(ctx context.Context, sess session.Session) outpass.Stats
	DashboardRecords(ctx context.Context, sess session.Session) []outpass.Record
}

// AuthHandlers provides HTTP handlers for the login lifecycle.
type AuthHandlers struct {
	Svc        SessionServiceInterface
	CookieName string
	Logger     *slog.Logger
	Renderer   *Renderer
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieName() string {
	if h != nil && h.CookieName != "" {
		return h.CookieName
	}
	return DefaultCookieName
}

// LoginPage renders the login page, creating a session when the visitor does
// not have one yet.
// GET /login.
func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.Current(r.Context(), sessionID(r, h.cookieName()))
	if err != nil {
		h.logger().ErrorContext(r.Context(), "restore session failed", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	// An authenticated visitor does not belong on the login page.
	if sess.Authenticated() {
		http.Redirect(w, r, sess.Identity.Role.DashboardPath(), http.StatusSeeOther)
		return
	}

	if sess.ID == "" {
		sess, err = h.Svc.Begin(r.Context())
		if err != nil {
			h.logger().ErrorContext(r.Context(), "begin session failed", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		h.setSessionCookie(w, r, sess)
	}

	h.Renderer.Render(w, "login.html", LoginPageData{
		Captcha:        sess.Captcha,
		Error:          sess.Error,
		Authenticating: sess.Status == session.StatusAuthenticating,
		ResetNotice:    sess.ResetNotice,
		ResetError:     sess.ResetError,
		Roles:          session.Roles(),
	})
}

// loginRequest is the POST /auth/login body.
type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Captcha  string `json:"captcha"`
}

// Login submits credentials for the visitor's session. Accepts a JSON body
// or a plain form post from the login page.
// POST /auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	isForm := isFormRequest(r)
	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		req = loginRequest{
			Username: r.PostFormValue("username"),
			Password: r.PostFormValue("password"),
			Role:     r.PostFormValue("role"),
			Captcha:  r.PostFormValue("captcha"),
		}
	} else if !DecodeJSON(w, r, &req) {
		return
	}

	sid := sessionID(r, h.cookieName())
	out, err := h.Svc.Login(r.Context(), sid, session.Credentials{
		Username: strings.TrimSpace(req.Username),
		Password: req.Password,
		Role:     req.Role,
		Captcha:  strings.TrimSpace(req.Captcha),
	})
	if err != nil {
		if isForm {
			// The error message lives on the session; the login page shows it.
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		if errors.Is(err, service.ErrLoginSuperseded) {
			// A newer attempt owns the session; this response is moot.
			WriteJSON(w, http.StatusConflict, map[string]string{"status": "superseded"})
			return
		}
		WriteAppError(w, err)
		return
	}

	// Refresh the cookie so the authenticated lifetime matches the store.
	h.setSessionCookie(w, r, out.Session)

	if isForm {
		http.Redirect(w, r, out.RedirectPath, http.StatusSeeOther)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"status":      "success",
		"redirect_to": out.RedirectPath,
		"user": map[string]any{
			"id":     out.Session.Identity.ID,
			"name":   out.Session.Identity.DisplayName,
			"role":   out.Session.Identity.Role,
			"hostel": out.Session.Identity.Hostel,
		},
	})
}

// Captcha returns the session's current challenge without changing it.
// GET /auth/captcha.
func (h *AuthHandlers) Captcha(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.Current(r.Context(), sessionID(r, h.cookieName()))
	if err != nil || sess.ID == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "not_found",
			Err:     errors.New("no session"),
		})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"captcha": sess.Captcha})
}

// RefreshCaptcha swaps the session's captcha challenge for a fresh one.
// POST /auth/captcha/refresh.
func (h *AuthHandlers) RefreshCaptcha(w http.ResponseWriter, r *http.Request) {
	challenge, err := h.Svc.RefreshCaptcha(r.Context(), sessionID(r, h.cookieName()))
	if err != nil {
		if isFormRequest(r) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		WriteAppError(w, err)
		return
	}
	if isFormRequest(r) {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"captcha": challenge})
}

// isFormRequest reports whether the body is a browser form post rather than
// a JSON API call.
func isFormRequest(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.Contains(ct, "application/x-www-form-urlencoded") ||
		strings.Contains(ct, "multipart/form-data")
}

// DismissError clears the visible login error ahead of its auto-clear.
// POST /auth/error/dismiss.
func (h *AuthHandlers) DismissError(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.DismissError(r.Context(), sessionID(r, h.cookieName())); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Logout ends the session. Safe to call repeatedly; a missing session is
// not an error.
// POST /auth/logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(r, h.cookieName())
	if err := h.Svc.Logout(r.Context(), sid); err != nil {
		h.logger().WarnContext(r.Context(), "logout failed", "error", err)
	}
	h.clearCookie(w, r, h.cookieName())

	// AJAX requests get a JSON payload; regular requests redirect.
	if strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		WriteJSON(w, http.StatusOK, map[string]string{
			"status":      "success",
			"redirect_to": "/login",
		})
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Svc.Current(r.Context(), sessionID(r, h.cookieName()))
	if err != nil || !sess.Authenticated() {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":     sess.Identity.ID,
			"name":   sess.Identity.DisplayName,
			"role":   sess.Identity.Role,
			"hostel": sess.Identity.Hostel,
		},
		"expires_at": sess.ExpiresAt,
	})
}

// setSessionCookie installs the opaque session ID as an HttpOnly cookie.
// Only the ID crosses the wire; identity and token stay server-side.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, sess session.Session) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		Expires:  sess.ExpiresAt,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearCookie clears a cookie by setting it to expire immediately.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request, name string) {
	isSecure := r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecure,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}
