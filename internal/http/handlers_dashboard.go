package httpx

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/ports"
)

var errAuthRequired = errors.New("authentication required")

// DashboardHandlers renders the per-role dashboard shells. Each is mounted
// behind RequireRole for its role, so the session in context is always
// authenticated with the right role.
type DashboardHandlers struct {
	Svc      SessionServiceInterface
	Audit    ports.AuditReader
	Logger   *slog.Logger
	Renderer *Renderer
}

var dashboardTitles = map[session.Role]string{
	session.RoleStudent:  "Student Dashboard",
	session.RoleWarden:   "Warden Dashboard",
	session.RoleSecurity: "Security Dashboard",
	session.RoleAdmin:    "Admin Dashboard",
}

// Page returns the dashboard handler for one role.
// GET /student, /warden, /security, /admin.
func (h *DashboardHandlers) Page(role session.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := SessionFromContext(r.Context())
		if !ok || !sess.Authenticated() {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}

		h.Renderer.Render(w, "dashboard.html", DashboardPageData{
			Title:    dashboardTitles[role],
			Identity: *sess.Identity,
			Stats:    h.Svc.DashboardStats(r.Context(), sess),
			Records:  h.Svc.DashboardRecords(r.Context(), sess),
		})
	}
}

// Stats returns the dashboard aggregates as JSON for in-page refresh.
// GET /{role}/stats.
func (h *DashboardHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok || !sess.Authenticated() {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errAuthRequired,
		})
		return
	}
	WriteJSON(w, http.StatusOK, h.Svc.DashboardStats(r.Context(), sess))
}

// Outpasses returns the role's outpass entries as JSON.
// GET /{role}/outpasses.
func (h *DashboardHandlers) Outpasses(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok || !sess.Authenticated() {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errAuthRequired,
		})
		return
	}
	records := h.Svc.DashboardRecords(r.Context(), sess)
	if records == nil {
		records = []outpass.Record{}
	}
	WriteJSON(w, http.StatusOK, records)
}

// Activity returns recent authentication events for the admin activity
// panel, newest first. Optional query params: user (filter by username),
// limit.
// GET /admin/activity.
func (h *DashboardHandlers) Activity(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok || !sess.Authenticated() {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errAuthRequired,
		})
		return
	}

	if h.Audit == nil {
		WriteJSON(w, http.StatusOK, []ports.AuditEvent{})
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.Audit.RecentEvents(r.Context(), r.URL.Query().Get("user"), limit)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "list audit events failed", "error", err)
		WriteAppError(w, err)
		return
	}
	if events == nil {
		events = []ports.AuditEvent{}
	}
	WriteJSON(w, http.StatusOK, events)
}
