package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
)

func TestDashboardPageAfterLogin(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.StatsFunc = func(context.Context, string, session.Role) (outpass.Stats, error) {
		return outpass.Stats{Total: 42, Pending: 7, Approved: 30, Rejected: 5}, nil
	}
	cookie := tp.login(t, "STUDENT")

	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Student Dashboard")
	assert.Contains(t, body, "Mock User")
	assert.Contains(t, body, "42")
}

func TestDashboardStatsJSON(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.StatsFunc = func(_ context.Context, token string, role session.Role) (outpass.Stats, error) {
		assert.Equal(t, "mock-token", token)
		assert.Equal(t, session.RoleWarden, role)
		return outpass.Stats{Total: 12, Pending: 3}, nil
	}
	cookie := tp.login(t, "WARDEN")

	req := httptest.NewRequest(http.MethodGet, "/warden/stats", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 12, body["total"])
	assert.EqualValues(t, 3, body["pending"])
}

func TestDashboardOutpassesJSON(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.RecentFunc = func(_ context.Context, token string, role session.Role) ([]outpass.Record, error) {
		assert.Equal(t, "mock-token", token)
		assert.Equal(t, session.RoleAdmin, role)
		return []outpass.Record{
			{ID: "op-1", Status: "PENDING", Destination: "Railway Station", StudentRollNumber: "21CS104"},
		}, nil
	}
	cookie := tp.login(t, "ADMIN")

	req := httptest.NewRequest(http.MethodGet, "/admin/outpasses", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var records []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "op-1", records[0]["id"])
	assert.Equal(t, "Railway Station", records[0]["destination"])
	assert.Equal(t, "21CS104", records[0]["student_roll_number"])
}

func TestDashboardPageShowsRecentOutpasses(t *testing.T) {
	tp := newTestPortal(t)
	tp.gateway.RecentFunc = func(context.Context, string, session.Role) ([]outpass.Record, error) {
		return []outpass.Record{
			{ID: "op-2", Status: "APPROVED", Destination: "Home", FromDate: "2026-08-30"},
		}, nil
	}
	cookie := tp.login(t, "STUDENT")

	req := httptest.NewRequest(http.MethodGet, "/student", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Recent Outpasses")
	assert.Contains(t, body, "APPROVED")
	assert.Contains(t, body, "2026-08-30")
}

func TestAdminActivityPanel(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.login(t, "ADMIN")

	// At least the admin's own login is on record.
	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var events []map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	require.NotEmpty(t, events)
	assert.Equal(t, "login_success", events[0]["kind"])
	assert.Equal(t, "22bcs123", events[0]["username"])

	// Filtering by an unknown username yields an empty list, not an error.
	req = httptest.NewRequest(http.MethodGet, "/admin/activity?user=nobody", nil)
	req.Header.Set("Accept", "application/json")
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	events = nil
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&events))
	assert.Empty(t, events)
}

func TestAdminActivityRequiresAdminRole(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.login(t, "STUDENT")

	req := httptest.NewRequest(http.MethodGet, "/admin/activity", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/student", rec.Header().Get("Location"))
}

func TestDashboardGuardedAcrossRoles(t *testing.T) {
	tp := newTestPortal(t)
	cookie := tp.login(t, "SECURITY")

	// Own dashboard admits.
	req := httptest.NewRequest(http.MethodGet, "/security", nil)
	req.Header.Set("Accept", "text/html")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	tp.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Foreign dashboards bounce back home.
	for _, path := range []string{"/student", "/warden", "/admin"} {
		req = httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept", "text/html")
		req.AddCookie(cookie)
		rec = httptest.NewRecorder()
		tp.handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/security", rec.Header().Get("Location"))
	}
}
