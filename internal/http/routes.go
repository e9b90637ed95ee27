package httpx

import (
	"log/slog"
	"net/http"

	"github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/ports"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions   SessionServiceInterface
	Reset      ResetServiceInterface
	Audit      ports.AuditReader
	CookieName string
	Logger     *slog.Logger
}

// NewRouter creates and configures the portal's HTTP router with browser
// detection, request logging, and panic recovery applied.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	renderer := NewRenderer(logger)

	authHandlers := &AuthHandlers{
		Svc:        services.Sessions,
		CookieName: services.CookieName,
		Logger:     logger,
		Renderer:   renderer,
	}
	resetHandlers := &ResetHandlers{
		Svc:        services.Reset,
		CookieName: services.CookieName,
		Logger:     logger,
	}
	dashHandlers := &DashboardHandlers{
		Svc:      services.Sessions,
		Audit:    services.Audit,
		Logger:   logger,
		Renderer: renderer,
	}

	mux := http.NewServeMux()

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	mux.HandleFunc("GET /{$}", rootRedirect(services.Sessions, authHandlers.cookieName()))
	mux.HandleFunc("GET /login", authHandlers.LoginPage)

	mux.HandleFunc("POST /auth/login", authHandlers.Login)
	mux.HandleFunc("GET /auth/captcha", authHandlers.Captcha)
	mux.HandleFunc("POST /auth/captcha/refresh", authHandlers.RefreshCaptcha)
	mux.HandleFunc("POST /auth/error/dismiss", authHandlers.DismissError)
	mux.HandleFunc("POST /auth/logout", authHandlers.Logout)
	mux.HandleFunc("GET /auth/status", authHandlers.Status)
	mux.HandleFunc("POST /auth/reset", resetHandlers.Submit)
	mux.HandleFunc("POST /auth/reset/close", resetHandlers.CloseNotice)

	registerDashboardRoutes(mux, dashHandlers, services)

	handler := Logging(logger)(mux)
	handler = Recover(logger)(handler)
	return BrowserDetection()(handler)
}

// registerDashboardRoutes mounts each role's dashboard subtree behind its
// route guard.
func registerDashboardRoutes(mux *http.ServeMux, h *DashboardHandlers, services RouterServices) {
	for _, role := range session.Roles() {
		guard := RequireRole(services.Sessions, role, cookieNameOrDefault(services.CookieName))
		base := role.DashboardPath()
		mux.Handle("GET "+base, guard(h.Page(role)))
		mux.Handle("GET "+base+"/stats", guard(http.HandlerFunc(h.Stats)))
		mux.Handle("GET "+base+"/outpasses", guard(http.HandlerFunc(h.Outpasses)))
		if role == session.RoleAdmin {
			mux.Handle("GET "+base+"/activity", guard(http.HandlerFunc(h.Activity)))
		}
	}
}

func cookieNameOrDefault(name string) string {
	if name != "" {
		return name
	}
	return DefaultCookieName
}

// rootRedirect sends the visitor where they belong: their dashboard when
// authenticated, the login page otherwise.
func rootRedirect(svc SessionResolver, cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Current(r.Context(), sessionID(r, cookieName))
		if err == nil && sess.Authenticated() {
			http.Redirect(w, r, sess.Identity.Role.DashboardPath(), http.StatusSeeOther)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
