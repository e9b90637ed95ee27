package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/ports"
	"github.com/mith/outpass-portal/internal/service"
)

func TestLoginPageCreatesSessionAndShowsCaptcha(t *testing.T) {
	tp := newTestPortal(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "session cookie must be set")
	assert.True(t, cookie.HttpOnly)

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Contains(t, rec.Body.String(), sess.Captcha)
}

func TestLoginEndToEndSuccess(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	rec := tp.postJSON(t, "/auth/login", map[string]string{
		"username": "22bcs123",
		"password": "hunter2",
		"role":     "WARDEN",
		"captcha":  tp.captchaFor(t, cookie),
	}, cookie)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "/warden", body["redirect_to"])

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, session.StatusAuthenticated, sess.Status)
	require.NotNil(t, sess.Identity)
	assert.Equal(t, session.RoleWarden, sess.Identity.Role)
}

func TestLoginValidationErrorsAsJSON(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	tests := []struct {
		name      string
		body      map[string]string
		wantCode  int
		wantMsg   string
		wantField string
	}{
		{
			name:     "missing fields",
			body:     map[string]string{"username": "u"},
			wantCode: http.StatusBadRequest,
			wantMsg:  service.MsgFillAllFields,
		},
		{
			name: "bad role",
			body: map[string]string{
				"username": "u", "password": "p", "role": "JANITOR", "captcha": "ABC123",
			},
			wantCode:  http.StatusBadRequest,
			wantMsg:   service.MsgInvalidRole,
			wantField: "role",
		},
		{
			name: "wrong captcha",
			body: map[string]string{
				"username": "u", "password": "p", "role": "STUDENT", "captcha": "WRONG1",
			},
			wantCode:  http.StatusBadRequest,
			wantMsg:   service.MsgInvalidCaptcha,
			wantField: "captcha",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tp.postJSON(t, "/auth/login", tt.body, cookie)
			require.Equal(t, tt.wantCode, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tt.wantMsg, body["message"])
			if tt.wantField != "" {
				assert.Equal(t, tt.wantField, body["field"])
			}
		})
	}
}

func TestLoginRejectedCredentials(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.LoginFunc = func(context.Context, ports.LoginInput) (ports.LoginResult, error) {
		return ports.LoginResult{Success: false}, nil
	}
	cookie := tp.openLoginPage(t)

	rec := tp.postJSON(t, "/auth/login", map[string]string{
		"username": "22bcs123",
		"password": "wrong",
		"role":     "STUDENT",
		"captcha":  tp.captchaFor(t, cookie),
	}, cookie)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, service.MsgInvalidCredentials, body["message"])

	// The login page now shows the stored error.
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	pageRec := httptest.NewRecorder()
	tp.handler.ServeHTTP(pageRec, req)
	assert.Contains(t, pageRec.Body.String(), service.MsgInvalidCredentials)
}

func TestLoginWithoutSessionIs404(t *testing.T) {
	tp := newTestPortal(t)

	rec := tp.postJSON(t, "/auth/login", map[string]string{
		"username": "u", "password": "p", "role": "STUDENT", "captcha": "ABC123",
	}, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshCaptchaEndpoint(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)
	before := tp.captchaFor(t, cookie)

	rec := tp.postJSON(t, "/auth/captcha/refresh", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)

	challenge, _ := body["captcha"].(string)
	assert.Len(t, challenge, 6)
	assert.NotEqual(t, before, challenge)
	assert.Equal(t, challenge, tp.captchaFor(t, cookie))

	// GET returns the current challenge without changing it.
	req := httptest.NewRequest(http.MethodGet, "/auth/captcha", nil)
	req.AddCookie(cookie)
	getRec := httptest.NewRecorder()
	tp.handler.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	assert.Equal(t, challenge, decodeBody(t, getRec)["captcha"])
}

func TestLoginFormPostRedirects(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	form := url.Values{}
	form.Set("username", "22bcs123")
	form.Set("password", "hunter2")
	form.Set("role", "STUDENT")
	form.Set("captcha", tp.captchaFor(t, cookie))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/student", rec.Header().Get("Location"))
}

func TestLoginFormPostFailureReturnsToLoginPage(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	form := url.Values{}
	form.Set("username", "22bcs123")
	form.Set("password", "hunter2")
	form.Set("role", "STUDENT")
	form.Set("captcha", "WRONG1")

	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, service.MsgInvalidCaptcha, sess.Error)
}

func TestDismissErrorEndpoint(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	rec := tp.postJSON(t, "/auth/login", map[string]string{
		"username": "u", "password": "p", "role": "STUDENT", "captcha": "WRONG1",
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = tp.postJSON(t, "/auth/error/dismiss", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Empty(t, sess.Error)
}

func TestAuthStatus(t *testing.T) {
	tp := newTestPortal(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["authenticated"])

	cookie := tp.login(t, "ADMIN")
	req = httptest.NewRequest(http.MethodGet, "/auth/status", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["authenticated"])
	user, _ := body["user"].(map[string]any)
	require.NotNil(t, user)
	assert.Equal(t, "ADMIN", user["role"])
}

func TestLogoutClearsCookieAndSession(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.login(t, "STUDENT")

	rec := tp.postJSON(t, "/auth/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/login", decodeBody(t, rec)["redirect_to"])

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookie must be expired")

	_, err := tp.store.Get(context.Background(), cookie.Value)
	assert.ErrorIs(t, err, ports.ErrSessionNotFound)

	// Logging out again is a no-op, not an error.
	rec = tp.postJSON(t, "/auth/logout", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginPageRedirectsAuthenticatedVisitor(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.login(t, "SECURITY")

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/security", rec.Header().Get("Location"))
}

func TestRootRedirect(t *testing.T) {
	tp := newTestPortal(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	cookie := tp.login(t, "WARDEN")
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/warden", rec.Header().Get("Location"))
}

func TestHealthz(t *testing.T) {
	tp := newTestPortal(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	req = httptest.NewRequest(http.MethodHead, "/healthz", nil)
	rec = httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
