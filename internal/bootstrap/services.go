package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/mith/outpass-portal/config"
	portalpg "github.com/mith/outpass-portal/internal/adapters/postgres"
	portalredis "github.com/mith/outpass-portal/internal/adapters/redis"
	"github.com/mith/outpass-portal/internal/adapters/upstream"
	"github.com/mith/outpass-portal/internal/migrate"
	"github.com/mith/outpass-portal/internal/ports"
	"github.com/mith/outpass-portal/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Sessions *service.SessionService
	Reset    *service.ResetService
	Expiry   *service.ExpiryScheduler
	Audit    ports.AuditLog
	// Activity reads the audit trail back for the admin activity panel.
	Activity ports.AuditReader
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// BuildServices wires adapters into the portal's services. The DB handle is
// optional; without it audit events are discarded.
func BuildServices(deps ServiceDeps) (ServiceContainer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &config.AppConfig{}
		cfg.Sanitize()
	}

	gateway, err := upstream.NewGateway(upstream.Config{
		BaseURL: cfg.Gateway.BaseURL,
		Timeout: cfg.Gateway.Timeout,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build gateway: %w", err)
	}

	var audit ports.AuditLog = portalpg.NopAuditLog{}
	var activity ports.AuditReader = portalpg.NopAuditLog{}
	if deps.DB != nil {
		if cfg.Postgres.RunMigrationsOnStart {
			if migErr := migrate.Run(context.Background(), deps.DB, logger); migErr != nil {
				return ServiceContainer{}, fmt.Errorf("run migrations: %w", migErr)
			}
		}
		pgAudit := portalpg.NewAuditLog(deps.DB)
		audit = pgAudit
		activity = pgAudit
	}

	store := portalredis.NewSessionStore(deps.RedisClient)
	expiry := service.NewExpiryScheduler()

	sessions := service.NewSessionService(service.SessionServiceOptions{
		Sessions:      store,
		Gateway:       gateway,
		Audit:         audit,
		Expiry:        expiry,
		Logger:        logger,
		AnonymousTTL:  cfg.Portal.AnonymousTTL,
		SessionTTL:    cfg.Portal.SessionTTL,
		ErrorWindow:   cfg.Portal.ErrorWindow,
		CaptchaLength: cfg.Portal.CaptchaLength,
	})
	reset := service.NewResetService(service.ResetServiceOptions{
		Sessions:     store,
		Gateway:      gateway,
		Audit:        audit,
		Expiry:       expiry,
		Logger:       logger,
		NoticeWindow: cfg.Portal.ResetNoticeWindow,
		ErrorWindow:  cfg.Portal.ErrorWindow,
	})

	return ServiceContainer{
		Sessions: sessions,
		Reset:    reset,
		Expiry:   expiry,
		Audit:    audit,
		Activity: activity,
	}, nil
}
