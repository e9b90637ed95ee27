package postgres

// Package postgres provides the Postgres-backed audit trail for
// authentication events.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "github.com/mith/outpass-portal/internal/errors"
	"github.com/mith/outpass-portal/internal/ports"
)

// AuditLog records authentication events to the auth_events table.
type AuditLog struct {
	db *sql.DB
}

var (
	_ ports.AuditLog    = (*AuditLog)(nil)
	_ ports.AuditReader = (*AuditLog)(nil)
)

// NewAuditLog constructs an AuditLog over an open database handle.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// Record inserts one audit event. Duplicate event IDs are treated as a
// successful no-op so retried handlers do not surface errors.
func (a *AuditLog) Record(ctx context.Context, e ports.AuditEvent) error {
	if e.ID == "" {
		return apperrors.Validation("audit event ID is required")
	}
	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	const q = `
		INSERT INTO auth_events (id, kind, username, role, success, detail, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := a.db.ExecContext(ctx, q, e.ID, string(e.Kind), e.Username, e.Role, e.Success, e.Detail, occurredAt)
	if err != nil {
		mapped := apperrors.MapDBError(err)
		if apperrors.IsConflict(mapped) {
			return nil
		}
		return fmt.Errorf("record audit event: %w", mapped)
	}
	return nil
}

// RecentEvents returns the most recent events, newest first, optionally
// filtered by username. Backs the admin dashboard's activity panel.
func (a *AuditLog) RecentEvents(ctx context.Context, username string, limit int) ([]ports.AuditEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
		SELECT id, kind, username, role, success, detail, occurred_at
		FROM auth_events
		WHERE $1 = '' OR username = $1
		ORDER BY occurred_at DESC
		LIMIT $2`

	rows, err := a.db.QueryContext(ctx, q, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", apperrors.MapDBError(err))
	}
	defer func() { _ = rows.Close() }()

	var events []ports.AuditEvent
	for rows.Next() {
		var e ports.AuditEvent
		var kind string
		if scanErr := rows.Scan(&e.ID, &kind, &e.Username, &e.Role, &e.Success, &e.Detail, &e.OccurredAt); scanErr != nil {
			return nil, fmt.Errorf("scan audit event: %w", scanErr)
		}
		e.Kind = ports.AuditEventKind(kind)
		events = append(events, e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate audit events: %w", apperrors.MapDBError(rowsErr))
	}
	return events, nil
}

// NopAuditLog discards events and has no history. Used when no database is
// configured.
type NopAuditLog struct{}

var (
	_ ports.AuditLog    = NopAuditLog{}
	_ ports.AuditReader = NopAuditLog{}
)

func (NopAuditLog) Record(context.Context, ports.AuditEvent) error { return nil }

func (NopAuditLog) RecentEvents(context.Context, string, int) ([]ports.AuditEvent, error) {
	return nil, nil
}
