package httpx

import (
	"bytes"
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoginPageData feeds the login template.
type LoginPageData struct {
	Captcha        string
	Error          string
	Authenticating bool
	ResetNotice    string
	ResetError     string
	Roles          []session.Role
}

// DashboardPageData feeds the role dashboard template.
type DashboardPageData struct {
	Title    string
	Identity session.Identity
	Stats    outpass.Stats
	Records  []outpass.Record
}

// Renderer renders the portal's embedded HTML templates.
type Renderer struct {
	tpl    *template.Template
	logger *slog.Logger
}

// NewRenderer parses the embedded templates. Parsing failures are programmer
// errors and panic at startup rather than surfacing per-request.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	tpl := template.Must(template.ParseFS(templateFS, "templates/*.html"))
	return &Renderer{tpl: tpl, logger: logger}
}

// Render executes the named template into a buffer first so a template error
// never leaves a half-written page on the wire.
func (re *Renderer) Render(w http.ResponseWriter, name string, data any) {
	var buf bytes.Buffer
	if err := re.tpl.ExecuteTemplate(&buf, name, data); err != nil {
		re.logger.Error("render template failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		return
	}
}
