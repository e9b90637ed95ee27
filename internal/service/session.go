package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mith/outpass-portal/internal/captcha"
	"github.com/mith/outpass-portal/internal/domain/outpass"
	"github.com/mith/outpass-portal/internal/domain/session"
	apperrors "github.com/mith/outpass-portal/internal/errors"
	"github.com/mith/outpass-portal/internal/ports"
)

// User-visible login messages. Wording matters: dashboards and tests key
// off these exact strings.
const (
	MsgFillAllFields      = "Please fill in all fields"
	MsgInvalidCaptcha     = "Invalid captcha code"
	MsgInvalidRole        = "Please select a valid role"
	MsgInvalidCredentials = "Invalid credentials"
	MsgNetworkError       = "Network error. Please try again."
)

const (
	defaultAnonymousTTL = 30 * time.Minute
	defaultSessionTTL   = 8 * time.Hour
	defaultErrorWindow  = 5 * time.Second
)

// ErrLoginSuperseded is returned when a login response resolves after a
// newer attempt has already been started for the same session. The stale
// response is discarded; the newer attempt owns the session state.
var ErrLoginSuperseded = errors.New("login attempt superseded by a newer one")

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Sessions ports.SessionStore
	Gateway  ports.IdentityGateway
	Audit    ports.AuditLog
	Expiry   *ExpiryScheduler
	Logger   *slog.Logger

	// AnonymousTTL bounds pre-login sessions; SessionTTL bounds
	// authenticated ones. ErrorWindow is how long a login error stays
	// visible before auto-clearing.
	AnonymousTTL time.Duration
	SessionTTL   time.Duration
	ErrorWindow  time.Duration
	// CaptchaLength overrides the default challenge length.
	CaptchaLength int
}

// SessionService orchestrates the portal's authentication state: session
// lifecycle, the login protocol, captcha refresh, and logout. It is the
// sole writer of the session store.
type SessionService struct {
	sessions ports.SessionStore
	gateway  ports.IdentityGateway
	audit    ports.AuditLog
	expiry   *ExpiryScheduler
	logger   *slog.Logger

	anonymousTTL time.Duration
	sessionTTL   time.Duration
	errorWindow  time.Duration
	captchaLen   int
}

// NewSessionService constructs a SessionService, applying defaults for
// zero-valued options.
func NewSessionService(opts SessionServiceOptions) *SessionService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	audit := opts.Audit
	if audit == nil {
		audit = nopAudit{}
	}
	expiry := opts.Expiry
	if expiry == nil {
		expiry = NewExpiryScheduler()
	}

	s := &SessionService{
		sessions:     opts.Sessions,
		gateway:      opts.Gateway,
		audit:        audit,
		expiry:       expiry,
		logger:       logger,
		anonymousTTL: opts.AnonymousTTL,
		sessionTTL:   opts.SessionTTL,
		errorWindow:  opts.ErrorWindow,
		captchaLen:   opts.CaptchaLength,
	}
	if s.anonymousTTL <= 0 {
		s.anonymousTTL = defaultAnonymousTTL
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = defaultSessionTTL
	}
	if s.errorWindow <= 0 {
		s.errorWindow = defaultErrorWindow
	}
	if s.captchaLen <= 0 {
		s.captchaLen = captcha.Length
	}
	return s
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, ports.AuditEvent) error { return nil }

// Begin creates a fresh anonymous session with an initial captcha challenge.
func (s *SessionService) Begin(ctx context.Context) (session.Session, error) {
	challenge, err := captcha.GenerateN(s.captchaLen)
	if err != nil {
		return session.Session{}, fmt.Errorf("generate captcha: %w", err)
	}

	sess := session.Session{
		ID:        uuid.NewString(),
		Status:    session.StatusAnonymous,
		Captcha:   challenge,
		ExpiresAt: time.Now().Add(s.anonymousTTL),
	}
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return session.Session{}, fmt.Errorf("save session: %w", saveErr)
	}
	return sess, nil
}

// Current restores the session for an ID. A missing or expired record is
// not an error: the zero session (empty ID, anonymous status) is returned
// and the caller decides whether to Begin a new one. The token is trusted
// as restored; it is not validated upstream until first use.
func (s *SessionService) Current(ctx context.Context, sid string) (session.Session, error) {
	if sid == "" {
		return anonymousSession(), nil
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		if errors.Is(err, ports.ErrSessionNotFound) {
			return anonymousSession(), nil
		}
		return session.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func anonymousSession() session.Session {
	return session.Session{Status: session.StatusAnonymous}
}

// LoginOutcome is the result of a successful login.
type LoginOutcome struct {
	Session session.Session
	// RedirectPath is the role's dashboard root from the dispatch table.
	RedirectPath string
}

// Login runs the full login protocol for a session: local validation in
// order (fields, then captcha), gateway submission, and atomic commit of
// identity and token. Validation and gateway failures are recorded on the
// session as a visible error that auto-clears after the error window.
//
// A login response only commits if no newer attempt was started meanwhile;
// stale responses return ErrLoginSuperseded without touching state.
func (s *SessionService) Login(ctx context.Context, sid string, creds session.Credentials) (*LoginOutcome, error) {
	sess, err := s.Current(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess.ID == "" {
		return nil, apperrors.NotFound("Your session has expired. Please reload the login page.")
	}

	// A stray attempt against an already-authenticated session (second tab
	// still showing the login page) must not disturb the committed identity.
	// Send the caller to their dashboard and leave the record untouched.
	if sess.Authenticated() {
		return &LoginOutcome{
			Session:      sess,
			RedirectPath: sess.Identity.Role.DashboardPath(),
		}, nil
	}

	// Local validation, short-circuiting. No gateway call happens on
	// failure and the captcha challenge is left as-is.
	if !creds.Complete() {
		return nil, s.failLogin(ctx, sess, apperrors.Validation(MsgFillAllFields))
	}
	if _, roleErr := session.ParseRole(creds.Role); roleErr != nil {
		return nil, s.failLogin(ctx, sess, apperrors.ValidationField("role", MsgInvalidRole))
	}
	if !captcha.Matches(sess.Captcha, creds.Captcha) {
		return nil, s.failLogin(ctx, sess, apperrors.ValidationField("captcha", MsgInvalidCaptcha))
	}

	role, _ := session.ParseRole(creds.Role)

	// Mark the attempt. The store increments the counter atomically, so a
	// later attempt always takes a higher value; the stored marker decides
	// which response still owns the session.
	seq, err := s.sessions.BumpLoginSeq(ctx, sid)
	if err != nil {
		return nil, fmt.Errorf("bump login seq: %w", err)
	}
	sess.LoginSeq = seq
	sess.Status = session.StatusAuthenticating
	sess.Error = ""
	s.expiry.Cancel(errorKey(sid))
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return nil, fmt.Errorf("save session: %w", saveErr)
	}

	result, gwErr := s.gateway.Login(ctx, ports.LoginInput{
		Username: creds.Username,
		Password: creds.Password,
		Role:     role,
	})

	// Re-read before committing anything: the stored attempt marker decides
	// whether this response still owns the session.
	cur, err := s.Current(ctx, sid)
	if err != nil {
		return nil, err
	}
	if cur.ID == "" {
		// Logged out or expired while the request was in flight.
		return nil, apperrors.NotFound("Your session has expired. Please reload the login page.")
	}
	if cur.LoginSeq != seq {
		return nil, ErrLoginSuperseded
	}

	if gwErr != nil {
		s.recordAudit(ctx, ports.AuditLoginFailure, creds.Username, string(role), false, gwErr.Error())
		return nil, s.failLogin(ctx, cur, apperrors.Wrap(gwErr, apperrors.ErrCodeUpstream, MsgNetworkError))
	}
	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = MsgInvalidCredentials
		}
		s.recordAudit(ctx, ports.AuditLoginFailure, creds.Username, string(role), false, msg)
		return nil, s.failLogin(ctx, cur, apperrors.Unauthorized(msg))
	}

	// Commit identity and token together, never one without the other.
	cur.Commit(result.User, result.Token)
	cur.ExpiresAt = time.Now().Add(s.sessionTTL)
	if saveErr := s.sessions.Save(ctx, cur); saveErr != nil {
		return nil, fmt.Errorf("commit session: %w", saveErr)
	}

	s.recordAudit(ctx, ports.AuditLoginSuccess, result.User.Username, string(result.User.Role), true, "")

	return &LoginOutcome{
		Session:      cur,
		RedirectPath: result.User.Role.DashboardPath(),
	}, nil
}

// failLogin records a visible error on the session and schedules its
// auto-clear. The returned error is the one passed in, so callers can
// propagate it directly.
func (s *SessionService) failLogin(ctx context.Context, sess session.Session, cause *apperrors.AppError) error {
	sess.SetError(cause.Message)
	errSeq := sess.ErrorSeq
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.WarnContext(ctx, "save login error state failed", "error", saveErr, "session_id", sess.ID)
		return cause
	}

	sid := sess.ID
	s.expiry.Schedule(errorKey(sid), s.errorWindow, func() {
		s.clearErrorIfCurrent(sid, errSeq)
	})
	return cause
}

// clearErrorIfCurrent consumes the session error after the display window,
// unless a newer error replaced it in the meantime.
func (s *SessionService) clearErrorIfCurrent(sid string, errSeq uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.Current(ctx, sid)
	if err != nil || sess.ID == "" {
		return
	}
	if sess.ErrorSeq != errSeq || sess.Error == "" {
		return
	}
	sess.ConsumeError()
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.Warn("clear login error failed", "error", saveErr, "session_id", sid)
	}
}

// DismissError clears the visible login error immediately and cancels the
// pending auto-clear so a stale timer cannot fire later.
func (s *SessionService) DismissError(ctx context.Context, sid string) error {
	s.expiry.Cancel(errorKey(sid))

	sess, err := s.Current(ctx, sid)
	if err != nil || sess.ID == "" {
		return err
	}
	if sess.Error == "" {
		return nil
	}
	sess.ConsumeError()
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return fmt.Errorf("save session: %w", saveErr)
	}
	return nil
}

// RefreshCaptcha installs a new challenge on explicit request. Nothing else
// about the session changes; credential fields live client-side and are
// untouched.
func (s *SessionService) RefreshCaptcha(ctx context.Context, sid string) (string, error) {
	sess, err := s.Current(ctx, sid)
	if err != nil {
		return "", err
	}
	if sess.ID == "" {
		return "", apperrors.NotFound("Your session has expired. Please reload the login page.")
	}

	challenge, err := captcha.GenerateN(s.captchaLen)
	if err != nil {
		return "", fmt.Errorf("generate captcha: %w", err)
	}
	sess.Captcha = challenge
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return "", fmt.Errorf("save session: %w", saveErr)
	}
	return challenge, nil
}

// Logout clears identity, token, and the durable store entry. Calling it
// for a missing or already-anonymous session is a no-op, not an error.
func (s *SessionService) Logout(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	s.expiry.Cancel(errorKey(sid))
	s.expiry.Cancel(resetKey(sid))
	s.expiry.Cancel(resetErrKey(sid))

	sess, err := s.Current(ctx, sid)
	if err != nil {
		return err
	}
	if sess.ID != "" && sess.Identity != nil {
		s.recordAudit(ctx, ports.AuditLogout, sess.Identity.Username, string(sess.Identity.Role), true, "")
	}

	if deleteErr := s.sessions.Delete(ctx, sid); deleteErr != nil {
		return fmt.Errorf("delete session: %w", deleteErr)
	}
	return nil
}

// DashboardStats fetches the role dashboard aggregates for an authenticated
// session. Upstream failures degrade to zeroed counts; the dashboard still
// renders.
func (s *SessionService) DashboardStats(ctx context.Context, sess session.Session) outpass.Stats {
	if !sess.Authenticated() {
		return outpass.Stats{}
	}
	stats, err := s.gateway.Stats(ctx, sess.Token, sess.Identity.Role)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch dashboard stats failed",
			"error", err, "role", sess.Identity.Role)
		return outpass.Stats{}
	}
	return stats
}

// DashboardRecords fetches the role's outpass list for an authenticated
// session. Upstream failures degrade to an empty list.
func (s *SessionService) DashboardRecords(ctx context.Context, sess session.Session) []outpass.Record {
	if !sess.Authenticated() {
		return nil
	}
	records, err := s.gateway.Recent(ctx, sess.Token, sess.Identity.Role)
	if err != nil {
		s.logger.WarnContext(ctx, "fetch dashboard records failed",
			"error", err, "role", sess.Identity.Role)
		return nil
	}
	return records
}

func (s *SessionService) recordAudit(ctx context.Context, kind ports.AuditEventKind, username, role string, success bool, detail string) {
	err := s.audit.Record(ctx, ports.AuditEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Username:   username,
		Role:       role,
		Success:    success,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "record audit event failed", "error", err, "kind", kind)
	}
}

func errorKey(sid string) string    { return "error:" + sid }
func resetKey(sid string) string    { return "reset:" + sid }
func resetErrKey(sid string) string { return "reseterr:" + sid }
