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

	apperrors "github.com/mith/outpass-portal/internal/errors"
	"github.com/mith/outpass-portal/internal/ports"
	"github.com/mith/outpass-portal/internal/service"
)

func validResetBody() map[string]string {
	return map[string]string{
		"usernameOrEmail": "22bcs123",
		"mobileNumber":    "9876543210",
		"newPassword":     "n3w-secret",
		"confirmPassword": "n3w-secret",
	}
}

func TestResetSubmitEndpoint(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	rec := tp.postJSON(t, "/auth/reset", validResetBody(), cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, service.MsgResetSuccess, body["message"])

	// The confirmation notice lands on the session and shows on the login page.
	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, service.MsgResetSuccess, sess.ResetNotice)
}

func TestResetSubmitWorksWithoutSession(t *testing.T) {
	tp := newTestPortal(t)

	rec := tp.postJSON(t, "/auth/reset", validResetBody(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgResetSuccess, decodeBody(t, rec)["message"])
}

func TestResetSubmitValidationFailures(t *testing.T) {
	tp := newTestPortal(t)

	body := validResetBody()
	body["confirmPassword"] = "different"
	rec := tp.postJSON(t, "/auth/reset", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, service.MsgPasswordMismatch, resp["message"])
	assert.Equal(t, "confirmPassword", resp["field"])

	body = validResetBody()
	body["mobileNumber"] = ""
	rec = tp.postJSON(t, "/auth/reset", body, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, service.MsgFillAllFields, decodeBody(t, rec)["message"])
}

func TestResetSubmitUpstreamFailure(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.ResetFunc = func(context.Context, ports.ResetInput) (ports.ResetOutcome, error) {
		return ports.ResetOutcome{}, apperrors.Upstream("Mobile number does not match")
	}

	rec := tp.postJSON(t, "/auth/reset", validResetBody(), nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Mobile number does not match", decodeBody(t, rec)["message"])
}

func TestResetFormPostFailureShowsErrorOnLoginPage(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)
	tp.gateway.ResetFunc = func(context.Context, ports.ResetInput) (ports.ResetOutcome, error) {
		return ports.ResetOutcome{}, apperrors.Upstream("Mobile number does not match")
	}

	form := url.Values{}
	form.Set("usernameOrEmail", "22bcs123")
	form.Set("mobileNumber", "9876543210")
	form.Set("newPassword", "n3w-secret")
	form.Set("confirmPassword", "n3w-secret")

	req := httptest.NewRequest(http.MethodPost, "/auth/reset", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, "Mobile number does not match", sess.ResetError)

	req = httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mobile number does not match")
}

func TestResetCloseNoticeEndpoint(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.openLoginPage(t)

	rec := tp.postJSON(t, "/auth/reset", validResetBody(), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = tp.postJSON(t, "/auth/reset/close", nil, cookie)
	require.Equal(t, http.StatusNoContent, rec.Code)

	sess, err := tp.store.Get(context.Background(), cookie.Value)
	require.NoError(t, err)
	assert.Empty(t, sess.ResetNotice)

	// Closing again is a no-op.
	rec = tp.postJSON(t, "/auth/reset/close", nil, cookie)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
