package portal

// Package portal contains simple hand-written test doubles for the portal's
// ports. These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"sync"

	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
	"github.com/mith/outpass-portal/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.SessionStore    = (*MemorySessionStore)(nil)
	_ ports.IdentityGateway = (*MockGateway)(nil)
	_ ports.AuditLog        = (*RecorderAudit)(nil)
	_ ports.AuditReader     = (*RecorderAudit)(nil)
)

// MemorySessionStore is an in-memory session store for unit tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	seqs     map[string]uint64

	// SaveErr, when set, is returned by every Save call.
	SaveErr error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]session.Session),
		seqs:     make(map[string]uint64),
	}
}

func (m *MemorySessionStore) Save(_ context.Context, sess session.Session) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return session.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.seqs, id)
	return nil
}

func (m *MemorySessionStore) BumpLoginSeq(_ context.Context, id string) (uint64, error) {
	if id == "" {
		return 0, ports.ErrSessionNotFound
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs[id]++
	return m.seqs[id], nil
}

// Len reports the number of stored sessions.
func (m *MemorySessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// MockGateway simulates the identity API with per-call overrides and call
// counting.
type MockGateway struct {
	mu sync.Mutex

	LoginFunc  func(ctx context.Context, in ports.LoginInput) (ports.LoginResult, error)
	ResetFunc  func(ctx context.Context, in ports.ResetInput) (ports.ResetOutcome, error)
	StatsFunc  func(ctx context.Context, token string, role session.Role) (outpass.Stats, error)
	RecentFunc func(ctx context.Context, token string, role session.Role) ([]outpass.Record, error)

	loginCalls int
	resetCalls int
}

// NewMockGateway creates a gateway whose default Login succeeds for any
// credentials, echoing the requested role.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (g *MockGateway) Login(ctx context.Context, in ports.LoginInput) (ports.LoginResult, error) {
	g.mu.Lock()
	g.loginCalls++
	g.mu.Unlock()

	if g.LoginFunc != nil {
		return g.LoginFunc(ctx, in)
	}
	return ports.LoginResult{
		Success: true,
		Token:   "mock-token",
		User: session.Identity{
			ID:          "mock-user-1",
			Username:    in.Username,
			DisplayName: "Mock User",
			Role:        in.Role,
			Hostel:      "Boys Hostel A",
		},
	}, nil
}

func (g *MockGateway) ResetPassword(ctx context.Context, in ports.ResetInput) (ports.ResetOutcome, error) {
	g.mu.Lock()
	g.resetCalls++
	g.mu.Unlock()

	if g.ResetFunc != nil {
		return g.ResetFunc(ctx, in)
	}
	return ports.ResetOutcome{Acknowledged: true}, nil
}

func (g *MockGateway) Stats(ctx context.Context, token string, role session.Role) (outpass.Stats, error) {
	if g.StatsFunc != nil {
		return g.StatsFunc(ctx, token, role)
	}
	return outpass.Stats{}, nil
}

func (g *MockGateway) Recent(ctx context.Context, token string, role session.Role) ([]outpass.Record, error) {
	if g.RecentFunc != nil {
		return g.RecentFunc(ctx, token, role)
	}
	return nil, nil
}

// LoginCalls reports how many times Login was invoked.
func (g *MockGateway) LoginCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.loginCalls
}

// ResetCalls reports how many times ResetPassword was invoked.
func (g *MockGateway) ResetCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resetCalls
}

// RecorderAudit captures audit events for assertions.
type RecorderAudit struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

// NewRecorderAudit creates an empty recorder.
func NewRecorderAudit() *RecorderAudit {
	return &RecorderAudit{}
}

func (r *RecorderAudit) Record(_ context.Context, e ports.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the captured events.
func (r *RecorderAudit) Events() []ports.AuditEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.AuditEvent, len(r.events))
	copy(out, r.events)
	return out
}

// RecentEvents lists captured events newest first, optionally filtered by
// username.
func (r *RecorderAudit) RecentEvents(_ context.Context, username string, limit int) ([]ports.AuditEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []ports.AuditEvent
	for i := len(r.events) - 1; i >= 0 && len(out) < limit; i-- {
		if username != "" && r.events[i].Username != username {
			continue
		}
		out = append(out, r.events[i])
	}
	return out, nil
}
