package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mith/outpass-portal/internal/domain/session"
	apperrors "github.com/mith/outpass-portal/internal/errors"
	"github.com/mith/outpass-portal/internal/ports"
)

// MsgResetSuccess is shown after a reset submission the gateway did not
// reject with an error.
const MsgResetSuccess = "Password reset successfully! You can now login with your new password."

// MsgPasswordMismatch rejects a reset whose confirmation does not match.
const MsgPasswordMismatch = "Passwords do not match"

const defaultNoticeWindow = 3 * time.Second

// ResetServiceOptions groups dependencies for ResetService.
type ResetServiceOptions struct {
	Sessions ports.SessionStore
	Gateway  ports.IdentityGateway
	Audit    ports.AuditLog
	Expiry   *ExpiryScheduler
	Logger   *slog.Logger
	// NoticeWindow is how long the success notice stays before the reset
	// modal auto-closes. ErrorWindow is how long a reset failure message
	// stays visible on the login page.
	NoticeWindow time.Duration
	ErrorWindow  time.Duration
}

// ResetService runs the self-service password reset flow. It does not
// depend on an authenticated session; anonymous visitors use it from the
// login page.
//
// Success is judged leniently: any gateway call that returns without an
// error is surfaced as success, whether or not the response carried an
// explicit success flag. This mirrors the confirmed upstream behavior and
// must not be "fixed" here without a coordinated API change.
type ResetService struct {
	sessions  ports.SessionStore
	gateway   ports.IdentityGateway
	audit     ports.AuditLog
	expiry    *ExpiryScheduler
	logger    *slog.Logger
	window    time.Duration
	errWindow time.Duration
}

// NewResetService constructs a ResetService with defaults applied.
func NewResetService(opts ResetServiceOptions) *ResetService {
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
	window := opts.NoticeWindow
	if window <= 0 {
		window = defaultNoticeWindow
	}
	errWindow := opts.ErrorWindow
	if errWindow <= 0 {
		errWindow = defaultErrorWindow
	}
	return &ResetService{
		sessions:  opts.Sessions,
		gateway:   opts.Gateway,
		audit:     audit,
		expiry:    expiry,
		logger:    logger,
		window:    window,
		errWindow: errWindow,
	}
}

// Submit validates and forwards a password-reset request. On perceived
// success the confirmation notice is stored on the portal session (when one
// exists) and scheduled to auto-clear after the notice window. On failure
// nothing is cleared, so the visitor's form data survives for a retry.
func (s *ResetService) Submit(ctx context.Context, sid string, req session.ResetRequest) (string, error) {
	if req.UsernameOrEmail == "" || req.MobileNumber == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return "", s.failReset(ctx, sid, apperrors.Validation(MsgFillAllFields))
	}
	if req.NewPassword != req.ConfirmPassword {
		return "", s.failReset(ctx, sid, apperrors.ValidationField("confirmPassword", MsgPasswordMismatch))
	}

	outcome, err := s.gateway.ResetPassword(ctx, ports.ResetInput{
		UsernameOrEmail: req.UsernameOrEmail,
		MobileNumber:    req.MobileNumber,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		s.recordReset(ctx, req.UsernameOrEmail, false, err.Error())
		return "", s.failReset(ctx, sid, err)
	}

	// Lenient-success policy: the call resolved, so this is a success even
	// when the response's embedded flag is false or absent.
	if !outcome.Acknowledged {
		s.logger.InfoContext(ctx, "reset response carried no success flag, reporting success anyway",
			"message", outcome.Message)
	}
	s.recordReset(ctx, req.UsernameOrEmail, true, outcome.Message)

	s.installNotice(ctx, sid)
	return MsgResetSuccess, nil
}

// failReset stores the failure message on the session (when one exists) so
// the login page can show it, and schedules its auto-clear. The returned
// error is the one passed in, so callers can propagate it directly.
func (s *ResetService) failReset(ctx context.Context, sid string, cause error) error {
	if sid == "" {
		return cause
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return cause
	}
	sess.ResetError = apperrors.UserMessage(cause, MsgNetworkError)
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.WarnContext(ctx, "save reset error state failed", "error", saveErr, "session_id", sid)
		return cause
	}

	s.expiry.Schedule(resetErrKey(sid), s.errWindow, func() {
		s.clearResetError(sid)
	})
	return cause
}

func (s *ResetService) clearResetError(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil || sess.ResetError == "" {
		return
	}
	sess.ResetError = ""
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.Warn("clear reset error failed", "error", saveErr, "session_id", sid)
	}
}

// installNotice stores the success notice on the session, drops any stale
// failure message, and schedules the auto-close of the reset modal.
func (s *ResetService) installNotice(ctx context.Context, sid string) {
	if sid == "" {
		return
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return
	}
	sess.ResetNotice = MsgResetSuccess
	sess.ResetError = ""
	s.expiry.Cancel(resetErrKey(sid))
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.WarnContext(ctx, "save reset notice failed", "error", saveErr, "session_id", sid)
		return
	}

	s.expiry.Schedule(resetKey(sid), s.window, func() {
		s.clearNotice(sid)
	})
}

func (s *ResetService) clearNotice(sid string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil || sess.ResetNotice == "" {
		return
	}
	sess.ResetNotice = ""
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		s.logger.Warn("clear reset notice failed", "error", saveErr, "session_id", sid)
	}
}

// CloseNotice dismisses the reset confirmation or failure message early,
// cancelling the pending auto-clears so they cannot fire after disposal.
func (s *ResetService) CloseNotice(ctx context.Context, sid string) error {
	if sid == "" {
		return nil
	}
	s.expiry.Cancel(resetKey(sid))
	s.expiry.Cancel(resetErrKey(sid))

	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil // nothing to clear
	}
	if sess.ResetNotice == "" && sess.ResetError == "" {
		return nil
	}
	sess.ResetNotice = ""
	sess.ResetError = ""
	if saveErr := s.sessions.Save(ctx, sess); saveErr != nil {
		return fmt.Errorf("save session: %w", saveErr)
	}
	return nil
}

func (s *ResetService) recordReset(ctx context.Context, usernameOrEmail string, success bool, detail string) {
	err := s.audit.Record(ctx, ports.AuditEvent{
		ID:         uuid.NewString(),
		Kind:       ports.AuditPasswordReset,
		Username:   usernameOrEmail,
		Success:    success,
		Detail:     detail,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "record reset audit event failed", "error", err)
	}
}
