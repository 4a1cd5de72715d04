// Package bootstrap собирает инфраструктуру из конфигурации: логгер,
// хранилища, кеши и внешние клиенты. Им пользуются и cmd/server, и cmd/worker.
//
// Пулы соединений создаются без обязательного ping: хранилище, недоступное
// при старте, подключится само, когда поднимется. Состояние видно в health checks.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/config"
	"github.com/eduhub/eduhub-dashboard/internal/application/query"
	"github.com/eduhub/eduhub-dashboard/internal/domain/dashboard"
	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/job"
	"github.com/eduhub/eduhub-dashboard/internal/domain/reconciliation"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/external/jobfeed"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/external/verification"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/enrollmentdb"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/redis"
	"github.com/eduhub/eduhub-dashboard/internal/interface/http/handlers"
	"github.com/eduhub/eduhub-dashboard/pkg/circuitbreaker"
	"github.com/eduhub/eduhub-dashboard/pkg/logger"
)

var (
	// ErrStudentStoreNotConfigured is reported when DATABASE_URL is empty.
	ErrStudentStoreNotConfigured = errors.New("student store is not configured (DATABASE_URL)")

	// ErrEnrollmentStoreNotConfigured is reported when TEACHER_DATABASE_URL is empty.
	ErrEnrollmentStoreNotConfigured = errors.New("enrollment store is not configured (TEACHER_DATABASE_URL)")

	// ErrCacheNotConfigured is reported when Redis is disabled.
	ErrCacheNotConfigured = errors.New("redis is not configured")
)

// NewLogger создаёт zap логгер с полями сервиса.
func NewLogger(cfg *config.Config, component string) (*zap.Logger, error) {
	return logger.New(logger.Options{
		Level:       cfg.Observability.LogLevel,
		Format:      logger.Format(cfg.Observability.LogFormat),
		Development: cfg.IsDevelopment(),
		InitialFields: map[string]any{
			"service":   cfg.App.Name,
			"component": component,
			"version":   cfg.App.Version,
			"env":       string(cfg.App.Environment),
		},
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STORES
// ══════════════════════════════════════════════════════════════════════════════

// Stores holds the opened stores. Nil fields mean the store is not configured
// (or its settings are invalid) and the matching *Err field says why. A
// configured store that is merely unreachable is kept: its pool reconnects.
type Stores struct {
	// Student store (pgx).
	Postgres   *postgres.Connection
	Students   student.Repository
	Ledger     reconciliation.Ledger
	StudentErr error

	// Enrollment store (gorm). Enrollments is never nil: without a database
	// it reports every call as unavailable.
	EnrollmentDB   *enrollmentdb.DB
	EnrollmentRepo *enrollmentdb.Repository
	Enrollments    enrollment.Repository
	EnrollmentErr  error
	enrollGuard    *enrollmentdb.GuardedRepository

	// Redis. Dashboard and Jobs stay nil without it.
	Cache     *redis.Cache
	Dashboard dashboard.Cache
	Jobs      query.JobsCache
	CacheErr  error

	logger *zap.Logger
}

// OpenStores connects every configured store. It only fails when ctx is done.
func OpenStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Stores, error) {
	s := &Stores{logger: log}

	s.openStudentStore(ctx, cfg)
	s.openEnrollmentStore(ctx, cfg)
	s.openCache(ctx, cfg)

	if err := ctx.Err(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Stores) openStudentStore(ctx context.Context, cfg *config.Config) {
	if cfg.Database.URL == "" {
		s.StudentErr = ErrStudentStoreNotConfigured
		return
	}

	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	if cfg.Database.MaxConns > 0 {
		pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	}
	if cfg.Database.MinConns > 0 {
		pgCfg.MinConns = int32(cfg.Database.MinConns)
	}
	if cfg.Database.MaxConnLifetime > 0 {
		pgCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	}
	if cfg.Database.MaxConnIdleTime > 0 {
		pgCfg.MaxConnIdleTime = cfg.Database.MaxConnIdleTime
	}
	if cfg.Database.ConnectTimeout > 0 {
		pgCfg.ConnectTimeout = cfg.Database.ConnectTimeout
	}

	conn, err := postgres.NewConnection(ctx, pgCfg)
	if err != nil {
		s.StudentErr = err
		s.logger.Error("student store misconfigured", logger.Store(shared.DomainStudentStore), zap.Error(err))
		return
	}

	s.Postgres = conn
	s.Students = postgres.NewStudentRepository(conn)
	s.Ledger = postgres.NewReconciliationRepository(conn)
	s.checkReachable(ctx, shared.DomainStudentStore, conn, pgCfg.ConnectTimeout, zap.Int32("max_conns", pgCfg.MaxConns))
}

func (s *Stores) openEnrollmentStore(ctx context.Context, cfg *config.Config) {
	s.Enrollments = enrollmentdb.UnavailableRepository{}

	if cfg.TeacherDatabase.URL == "" {
		s.EnrollmentErr = ErrEnrollmentStoreNotConfigured
		return
	}

	db, err := enrollmentdb.Open(enrollmentdb.Config{
		URL:             cfg.TeacherDatabase.URL,
		MaxOpenConns:    cfg.TeacherDatabase.MaxOpenConns,
		MaxIdleConns:    cfg.TeacherDatabase.MaxIdleConns,
		ConnMaxLifetime: cfg.TeacherDatabase.ConnMaxLifetime,
		LogQueries:      cfg.TeacherDatabase.LogQueries,
	}, s.logger)
	if err != nil {
		s.EnrollmentErr = err
		s.logger.Error("enrollment store misconfigured", logger.Store(shared.DomainEnrollmentStore), zap.Error(err))
		return
	}

	breakerLog := s.logger.Named("enrollmentdb")
	breaker := circuitbreaker.EnrollmentStoreBreaker(func(name string, from, to circuitbreaker.State) {
		breakerLog.Warn("circuit breaker state changed",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	}, shared.IsStoreOutage)

	s.EnrollmentDB = db
	s.EnrollmentRepo = enrollmentdb.NewRepository(db)
	s.enrollGuard = enrollmentdb.NewGuardedRepository(s.EnrollmentRepo, breaker)
	s.Enrollments = s.enrollGuard
	s.checkReachable(ctx, shared.DomainEnrollmentStore, db, cfg.TeacherDatabase.ConnectTimeout)
}

func (s *Stores) openCache(ctx context.Context, cfg *config.Config) {
	if !cfg.Redis.Enabled() {
		s.CacheErr = ErrCacheNotConfigured
		return
	}

	redisCfg := redis.DefaultConfig()
	redisCfg.URL = cfg.Redis.URL
	redisCfg.Addr = cfg.Redis.Addr
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		redisCfg.PoolSize = cfg.Redis.PoolSize
	}

	cache, err := redis.NewCache(redisCfg)
	if err != nil {
		s.CacheErr = err
		s.logger.Warn("redis misconfigured, caching disabled", zap.Error(err))
		return
	}

	s.Cache = cache
	s.Dashboard = redis.NewDashboardCache(cache)
	s.Jobs = redis.NewJobsCache(cache)
	s.checkReachable(ctx, "cache", cache, redisCfg.DialTimeout)
}

// checkReachable pings a freshly created pool once. Failure is only logged: the pool
// keeps redialing and the health check reports the live state.
func (s *Stores) checkReachable(ctx context.Context, name string, p handlers.Pinger, timeout time.Duration, fields ...zap.Field) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Ping(pctx); err != nil {
		s.logger.Warn("store not reachable yet, will reconnect on demand",
			logger.Store(name),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("store connected", append(fields, logger.Store(name))...)
}

// HealthChecks registers one check per store. Only the student store is
// critical for readiness.
func (s *Stores) HealthChecks(checker *handlers.CompositeHealthChecker) {
	if s.Postgres != nil {
		checker.AddCheck("student_store", handlers.NewPingCheck(s.Postgres), true)
	} else {
		checker.AddCheck("student_store", handlers.NewStaticFailure(s.StudentErr), true)
	}

	if s.EnrollmentDB != nil {
		checker.AddCheck("enrollment_store", s.enrollmentCheck(), false)
	} else {
		checker.AddCheck("enrollment_store", handlers.NewStaticFailure(s.EnrollmentErr), false)
	}

	if s.Cache != nil {
		checker.AddCheck("cache", handlers.NewPingCheck(s.Cache), false)
	}
}

// enrollmentCheck pings the database and reports an open breaker even when
// the ping itself succeeds.
func (s *Stores) enrollmentCheck() handlers.HealthCheckFunc {
	return func(ctx context.Context) error {
		if err := s.EnrollmentDB.Ping(ctx); err != nil {
			return err
		}
		if b := s.enrollGuard.Breaker(); b.IsOpen() {
			return fmt.Errorf("circuit breaker %s is %s", b.Name(), b.State())
		}
		return nil
	}
}

// Close releases every open connection.
func (s *Stores) Close() {
	if s.Cache != nil {
		if err := s.Cache.Close(); err != nil {
			s.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if s.EnrollmentDB != nil {
		if err := s.EnrollmentDB.Close(); err != nil {
			s.logger.Warn("failed to close enrollment store", zap.Error(err))
		}
	}
	if s.Postgres != nil {
		s.Postgres.Close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL SERVICES
// ══════════════════════════════════════════════════════════════════════════════

// NewJobFeed returns the feed client, or an empty feed when JOB_FEED_URL is unset.
func NewJobFeed(cfg *config.Config, log *zap.Logger) job.Feed {
	if cfg.JobFeed.URL == "" {
		return job.EmptyFeed{}
	}
	feedCfg := jobfeed.DefaultConfig(cfg.JobFeed.URL, cfg.JobFeed.APIKey)
	if cfg.JobFeed.Timeout > 0 {
		feedCfg.Timeout = cfg.JobFeed.Timeout
	}
	return jobfeed.NewClient(feedCfg, log)
}

// NewVerifier returns the verification client, or Unconfigured.
func NewVerifier(cfg *config.Config, log *zap.Logger) verification.Verifier {
	if cfg.Verification.URL == "" {
		return verification.Unconfigured{}
	}
	return verification.NewClient(verification.Config{
		BaseURL: cfg.Verification.URL,
		APIKey:  cfg.Verification.APIKey,
		Timeout: cfg.Verification.Timeout,
	}, log)
}

// NewJobsHandler wires the jobs query over the feed and the shared cache.
func NewJobsHandler(cfg *config.Config, stores *Stores, log *zap.Logger) *query.GetJobsHandler {
	return query.NewGetJobsHandler(NewJobFeed(cfg, log), stores.Jobs, cfg.JobFeed.CacheTTL, log)
}
