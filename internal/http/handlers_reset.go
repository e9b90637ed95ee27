package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mith/outpass-portal/internal/domain/session"
)

// ResetServiceInterface defines the interface for password reset operations.
type ResetServiceInterface interface {
	Submit(ctx context.Context, sid string, req session.ResetRequest) (string, error)
	CloseNotice(ctx context.Context, sid string) error
}

// ResetHandlers provides HTTP handlers for the password reset flow.
type ResetHandlers struct {
	Svc        ResetServiceInterface
	CookieName string
	Logger     *slog.Logger
}

func (h *ResetHandlers) cookieName() string {
	if h != nil && h.CookieName != "" {
		return h.CookieName
	}
	return DefaultCookieName
}

// resetRequest is the POST /auth/reset body.
type resetRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	MobileNumber    string `json:"mobileNumber"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

// Submit forwards a password reset request. Accepts a JSON body or a form
// post from the login page. The reset flow works without a portal session;
// when one exists the confirmation notice is stored on it.
// POST /auth/reset.
func (h *ResetHandlers) Submit(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	isForm := isFormRequest(r)
	if isForm {
		if err := r.ParseForm(); err != nil {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		req = resetRequest{
			UsernameOrEmail: r.PostFormValue("usernameOrEmail"),
			MobileNumber:    r.PostFormValue("mobileNumber"),
			NewPassword:     r.PostFormValue("newPassword"),
			ConfirmPassword: r.PostFormValue("confirmPassword"),
		}
	} else if !DecodeJSON(w, r, &req) {
		return
	}

	msg, err := h.Svc.Submit(r.Context(), sessionID(r, h.cookieName()), session.ResetRequest{
		UsernameOrEmail: strings.TrimSpace(req.UsernameOrEmail),
		MobileNumber:    strings.TrimSpace(req.MobileNumber),
		NewPassword:     req.NewPassword,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		if isForm {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		WriteAppError(w, err)
		return
	}

	if isForm {
		// The confirmation notice lives on the session; the login page shows it.
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": msg,
	})
}

// CloseNotice dismisses the reset confirmation ahead of its auto-close.
// POST /auth/reset/close.
func (h *ResetHandlers) CloseNotice(w http.ResponseWriter, r *http.Request) {
	if err := h.Svc.CloseNotice(r.Context(), sessionID(r, h.cookieName())); err != nil {
		WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
