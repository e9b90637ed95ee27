package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mith/outpass-portal/internal/mocks/portal"
	"github.com/mith/outpass-portal/internal/service"
)

// testPortal wires a full router over in-memory doubles.
type testPortal struct {
	handler http.Handler
	store   *portal.MemorySessionStore
	gateway *portal.MockGateway
	audit   *portal.RecorderAudit
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()

	tp := &testPortal{
		store:   portal.NewMemorySessionStore(),
		gateway: portal.NewMockGateway(),
		audit:   portal.NewRecorderAudit(),
	}
	expiry := service.NewExpiryScheduler()
	t.Cleanup(expiry.Stop)
	logger := slog.New(slog.DiscardHandler)

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Sessions: tp.store,
		Gateway:  tp.gateway,
		Audit:    tp.audit,
		Expiry:   expiry,
		Logger:   logger,
	})
	reset := service.NewResetService(service.ResetServiceOptions{
		Sessions: tp.store,
		Gateway:  tp.gateway,
		Audit:    tp.audit,
		Expiry:   expiry,
		Logger:   logger,
	})

	tp.handler = NewRouter(RouterServices{
		Sessions: sessions,
		Reset:    reset,
		Audit:    tp.audit,
		Logger:   logger,
	})
	return tp
}

// openLoginPage performs GET /login and returns the session cookie it set.
func (tp *testPortal) openLoginPage(t *testing.T) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "text/html")
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, c := range rec.Result().Cookies() {
		if c.Name == DefaultCookieName && c.Value != "" {
			return c
		}
	}
	t.Fatal("login page did not set a session cookie")
	return nil
}

// captchaFor reads the stored challenge for a session cookie.
func (tp *testPortal) captchaFor(t *testing.T, cookie *http.Cookie) string {
	t.Helper()
	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	return sess.Captcha
}

// postJSON sends a JSON request through the router.
func (tp *testPortal) postJSON(t *testing.T, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	return rec
}

// login runs the full page-then-credentials flow and returns the session
// cookie for follow-up requests.
func (tp *testPortal) login(t *testing.T, role string) *http.Cookie {
	t.Helper()

	cookie := tp.openLoginPage(t)
	rec := tp.postJSON(t, "/auth/login", map[string]string{
		"username": "22bcs123",
		"password": "hunter2",
		"role":     role,
		"captcha":  tp.captchaFor(t, cookie),
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return cookie
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}
