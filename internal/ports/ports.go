package ports

// Package ports defines interfaces (hexagonal ports) for the portal's
// collaborators. Implementations live in internal/adapters; orchestration
// in internal/service.

import (
	"context"
	"errors"
	"time"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
)

// ErrSessionNotFound is returned by SessionStore implementations when no
// record exists for an ID. Absence means anonymous.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists and retrieves portal sessions. It is the durable
// storage behind the session cookie and the single source of truth for
// authentication state across reloads.
type SessionStore interface {
	Save(ctx context.Context, sess session.Session) error
	Get(ctx context.Context, id string) (session.Session, error)
	Delete(ctx context.Context, id string) error
	// BumpLoginSeq atomically increments the session's login attempt counter
	// and returns the new value. Concurrent attempts always observe distinct
	// values, which the stored marker uses to decide which response commits.
	BumpLoginSeq(ctx context.Context, id string) (uint64, error)
}

// LoginInput carries verified-by-upstream credentials for a login call.
type LoginInput struct {
	Username string
	Password string
	Role     session.Role
}

// LoginResult is the identity API's answer to a login call.
type LoginResult struct {
	Success bool
	User    session.Identity
	Token   string
	Message string
}

// ResetInput carries the identity proof for a self-service password reset.
type ResetInput struct {
	UsernameOrEmail string
	MobileNumber    string
	NewPassword     string
}

// ResetOutcome is the normalized result of a password-reset call.
// Acknowledged is true when the response carried an explicit success flag,
// at top level or nested under data. Callers apply the portal's
// lenient-success policy on top of this.
type ResetOutcome struct {
	Acknowledged bool
	Message      string
}

// IdentityGateway is the client contract to the remote identity API.
// All methods are network calls; errors indicate transport or HTTP-level
// failure, never a business rejection (those land in the result types).
type IdentityGateway interface {
	Login(ctx context.Context, in LoginInput) (LoginResult, error)
	ResetPassword(ctx context.Context, in ResetInput) (ResetOutcome, error)
	// Stats fetches dashboard aggregates for the authenticated role using
	// the session token.
	Stats(ctx context.Context, token string, role session.Role) (outpass.Stats, error)
	// Recent fetches the role's outpass entries for the dashboard list.
	Recent(ctx context.Context, token string, role session.Role) ([]outpass.Record, error)
}

// AuditEventKind classifies audit trail entries.
type AuditEventKind string

const (
	AuditLoginSuccess  AuditEventKind = "login_success"
	AuditLoginFailure  AuditEventKind = "login_failure"
	AuditLogout        AuditEventKind = "logout"
	AuditPasswordReset AuditEventKind = "password_reset"
)

// AuditEvent is one recorded authentication event.
type AuditEvent struct {
	ID         string         `json:"id"`
	Kind       AuditEventKind `json:"kind"`
	Username   string         `json:"username"`
	Role       string         `json:"role,omitempty"`
	Success    bool           `json:"success"`
	Detail     string         `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// AuditLog records authentication events. Implementations must tolerate
// duplicate event IDs (retries).
type AuditLog interface {
	Record(ctx context.Context, e AuditEvent) error
}

// AuditReader lists recorded events for the admin activity panel, newest
// first. An empty username means all users.
type AuditReader interface {
	RecentEvents(ctx context.Context, username string, limit int) ([]AuditEvent, error)
}
