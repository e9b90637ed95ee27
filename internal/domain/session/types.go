package session

// Package session contains domain-level types for portal sessions and
// role-based authorization. It is pure and free of framework/adapter concerns.

import (
	"fmt"
	"strings"
	"time"
)

// Role represents a portal user class. The set is closed; dashboard access
// is decided entirely by this value.
type Role string

const (
	RoleStudent  Role = "STUDENT"
	RoleWarden   Role = "WARDEN"
	RoleSecurity Role = "SECURITY"
	RoleAdmin    Role = "ADMIN"
)

// ParseRole normalizes and validates a role string.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RoleStudent, RoleWarden, RoleSecurity, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role: %q", s)
	}
}

// Roles returns the closed role set in login-form order.
func Roles() []Role {
	return []Role{RoleStudent, RoleWarden, RoleSecurity, RoleAdmin}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleWarden, RoleSecurity, RoleAdmin:
		return true
	}
	return false
}

// DashboardPath returns the dashboard root for a role. This is the single
// dispatch table used for both post-login navigation and guard redirects;
// unrecognized roles land on the student dashboard.
func (r Role) DashboardPath() string {
	switch r {
	case RoleWarden:
		return "/warden"
	case RoleSecurity:
		return "/security"
	case RoleAdmin:
		return "/admin"
	case RoleStudent:
		return "/student"
	default:
		return "/student"
	}
}

// Identity is the authenticated user profile returned by the identity API.
type Identity struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        Role   `json:"role"`
	// Hostel is the optional hostel affiliation, used by dashboards for
	// badge display and the rollNumber/hostel fallback contract.
	Hostel string `json:"hostel,omitempty"`
}

// Status is the lifecycle state of a portal session.
type Status string

const (
	StatusAnonymous      Status = "anonymous"
	StatusAuthenticating Status = "authenticating"
	StatusAuthenticated  Status = "authenticated"
	StatusError          Status = "error"
)

// Session is the server-side record persisted for a portal visitor. It is
// created anonymous, carries the current captcha challenge during login,
// and holds identity plus upstream token once authenticated.
//
// Invariant: Token and Identity are set or cleared together, never one
// without the other. Use Commit and ClearIdentity rather than assigning
// the fields directly.
type Session struct {
	ID       string    `json:"id"`
	Status   Status    `json:"status"`
	Identity *Identity `json:"identity,omitempty"`
	// Token is the opaque credential issued by the identity API.
	Token string `json:"token,omitempty"`
	// Captcha is the active challenge to compare login input against.
	Captcha string `json:"captcha,omitempty"`
	// LoginSeq increments on every login attempt; a response commits only
	// if the stored value still matches the attempt that produced it.
	LoginSeq uint64 `json:"login_seq"`
	// Error is the visible login error message, if any. ErrorSeq guards
	// the auto-clear timer against clearing a newer error.
	Error    string `json:"error,omitempty"`
	ErrorSeq uint64 `json:"error_seq"`
	// ResetNotice is the visible password-reset confirmation, if any.
	// ResetError is the visible reset failure message; they are mutually
	// exclusive in practice but stored independently.
	ResetNotice string    `json:"reset_notice,omitempty"`
	ResetError  string    `json:"reset_error,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticated reports whether the session carries a committed identity.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.Identity != nil && s.Token != ""
}

// Commit atomically installs identity and token and marks the session
// authenticated. Any visible error is consumed.
func (s *Session) Commit(id Identity, token string) {
	ident := id
	s.Identity = &ident
	s.Token = token
	s.Status = StatusAuthenticated
	s.Error = ""
}

// ClearIdentity removes identity and token together and reverts the
// session to anonymous.
func (s *Session) ClearIdentity() {
	s.Identity = nil
	s.Token = ""
	s.Status = StatusAnonymous
}

// SetError records a visible error message, bumping ErrorSeq so a pending
// auto-clear for an older error cannot fire against this one.
func (s *Session) SetError(msg string) {
	s.Error = msg
	s.ErrorSeq++
	s.Status = StatusError
}

// ConsumeError clears the visible error and reverts an error status to
// anonymous. Authenticated sessions keep their status.
func (s *Session) ConsumeError() {
	s.Error = ""
	if s.Status == StatusError {
		s.Status = StatusAnonymous
	}
}

// Credentials is the transient login form input. It is never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
	Captcha  string `json:"captcha"`
}

// Complete reports whether all four credential fields are present.
func (c Credentials) Complete() bool {
	return c.Username != "" && c.Password != "" && c.Role != "" && c.Captcha != ""
}

// ResetRequest is the transient password-reset form input.
type ResetRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
	MobileNumber    string `json:"mobile_number"`
	NewPassword     string `json:"new_password"`
	ConfirmPassword string `json:"confirm_password"`
}
