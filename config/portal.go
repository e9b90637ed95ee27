package config

import "time"

// PortalConfig configures session lifetimes and login flow timing.
type PortalConfig struct {
	// CookieName is the session cookie holding the opaque session ID.
	CookieName string `env:"COOKIE_NAME" envDefault:"portal_sid"`

	// AnonymousTTL bounds pre-login sessions.
	AnonymousTTL time.Duration `env:"ANONYMOUS_TTL" envDefault:"30m"`

	// SessionTTL bounds authenticated sessions.
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"8h"`

	// ErrorWindow is how long a login error stays visible before auto-clearing.
	ErrorWindow time.Duration `env:"ERROR_WINDOW" envDefault:"5s"`

	// ResetNoticeWindow is how long the password reset confirmation stays
	// visible before auto-closing.
	ResetNoticeWindow time.Duration `env:"RESET_NOTICE_WINDOW" envDefault:"3s"`

	// CaptchaLength is the number of characters in the login challenge.
	CaptchaLength int `env:"CAPTCHA_LENGTH" envDefault:"6"`
}

// Sanitize applies guardrails to portal configuration values.
func (p *PortalConfig) Sanitize() {
	if p.CookieName == "" {
		p.CookieName = "portal_sid"
	}
	if p.AnonymousTTL <= 0 {
		p.AnonymousTTL = 30 * time.Minute
	}
	if p.SessionTTL <= 0 {
		p.SessionTTL = 8 * time.Hour
	}
	if p.ErrorWindow <= 0 {
		p.ErrorWindow = 5 * time.Second
	}
	if p.ResetNoticeWindow <= 0 {
		p.ResetNoticeWindow = 3 * time.Second
	}
	if p.CaptchaLength < 4 || p.CaptchaLength > 10 {
		p.CaptchaLength = 6
	}
}
