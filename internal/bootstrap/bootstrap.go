package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	httpadapter "github.com/kirillkom/policy-upload-portal/internal/adapters/http"
	"github.com/kirillkom/policy-upload-portal/internal/config"
	"github.com/kirillkom/policy-upload-portal/internal/core/ports"
	"github.com/kirillkom/policy-upload-portal/internal/core/usecase"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/credentials"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/inspect/pdfmeta"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/queue/nats"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/resilience"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/sanitize"
	"github.com/kirillkom/policy-upload-portal/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/policy-upload-portal/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Services httpadapter.Services
	Janitor  *usecase.Janitor
	Sweeps   *metrics.WorkerMetrics

	closeFn func()
}

// New wires storage, repositories and services. service names the process in sweep metrics.
func New(ctx context.Context, cfg config.Config, service string) (*App, error) {
	db, err := postgres.OpenDB(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		AcquireTimeout:  cfg.DBAcquireTimeout,
		ConnectAttempts: cfg.DBConnectAttempts,
		ConnectBackoff:  cfg.DBConnectBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.UploadDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init upload storage: %w", err)
	}
	if err := storage.Probe(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("upload directory not writable: %w", err)
	}

	submissions := postgres.NewSubmissionRepository(db)
	documents := postgres.NewDocumentRepository(db)
	calendar := postgres.NewCalendarRepository(db)
	adminUsers := postgres.NewAdminUserRepository(db)
	adminSessions := postgres.NewAdminSessionRepository(db)
	uploaderSessions := postgres.NewUploaderSessionRepository(db)
	rateLimits := postgres.NewRateLimitRepository(db)
	auditLog := postgres.NewAuditRepository(db)

	hasher := credentials.NewPasswordHasher(credentials.DefaultArgon2Params())
	tokens := credentials.NewTokens()
	sanitizer := sanitize.NewText()

	if _, err := usecase.EnsureAdminUser(ctx, adminUsers, hasher, usecase.AdminSeed{
		Username: cfg.AdminUsername,
		Password: cfg.AdminPassword,
		Email:    cfg.AdminEmail,
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("seed admin user: %w", err)
	}

	notifier, closeNotifier, err := newForwardNotifier(cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	auditor := usecase.NewAuditor(auditLog)
	limiter := usecase.NewRateLimiter(rateLimits, usecase.RateLimitPolicy{
		LoginMaxAttempts:      cfg.LoginMaxAttempts,
		SubmissionMaxAttempts: cfg.SubmissionMaxAttempts,
	})

	sweeps := metrics.NewWorkerMetrics(service)
	janitor := usecase.NewJanitor(
		rateLimits,
		adminSessions,
		uploaderSessions,
		submissions,
		storage,
		sweeps,
		auditor,
		usecase.JanitorPolicy{Interval: cfg.JanitorInterval, DraftMaxAge: cfg.DraftMaxAge},
	)

	services := httpadapter.Services{
		Submissions: usecase.NewSubmissionService(
			submissions, documents, calendar, storage, notifier, sanitizer, limiter, auditor, cfg.RetentionMonths,
		),
		Documents: usecase.NewDocumentService(
			submissions, documents, uploaderSessions, tokens, storage, pdfmeta.NewInspector(storage), sanitizer, auditor,
			usecase.UploadPolicy{MaxUploadSize: cfg.MaxUploadSize, CanonicalLawDomain: cfg.CanonicalLawDomain},
		),
		Calendar: usecase.NewCalendarService(submissions, calendar, sanitizer, auditor),
		AdminAuth: usecase.NewAdminAuthService(
			usecase.NewLocalPasswordProvider(adminUsers, hasher),
			adminUsers, adminSessions, tokens, limiter, auditor, cfg.AdminSessionTTL,
		),
		UploaderAuth: usecase.NewUploaderAuthService(
			submissions, documents, uploaderSessions, tokens, limiter, auditor, cfg.UploaderSessionTTL,
		),
		Exports: usecase.NewExportService(submissions, documents, calendar, auditLog, storage, xlsx.NewOverviewWriter()),
	}

	return &App{
		Config:   cfg,
		Services: services,
		Janitor:  janitor,
		Sweeps:   sweeps,
		closeFn: func() {
			closeNotifier()
			_ = db.Close()
		},
	}, nil
}

// newForwardNotifier connects to NATS when NATS_URL is set. Without a broker, forwarding
// still records status and audit, it just announces nothing.
func newForwardNotifier(cfg config.Config) (ports.ForwardNotifier, func(), error) {
	if cfg.NATSURL == "" {
		slog.Info("forward_notifier_disabled", "reason", "NATS_URL not set")
		return nats.NoopNotifier{}, func() {}, nil
	}
	publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		Guard: resilience.NewGuard(resilience.PublishPolicy()),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init forward notifier: %w", err)
	}
	return publisher, publisher.Close, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
