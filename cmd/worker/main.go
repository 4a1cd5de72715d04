// Package main - точка входа для фоновых процессов (Worker) EduHub Dashboard.
//
// Worker отвечает за:
// - Применение миграций обеих баз
// - Сверку записей на курсы после сбоев базы преподавателей (reconcile)
// - Периодическое обновление ленты вакансий в кеше
//
// Опционально загружает справочные данные (преподаватели и курсы) из JSON
// файла, переданного через флаг -seed.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/config"
	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/internal/bootstrap"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/persistence/postgres"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/scheduler"
	"github.com/eduhub/eduhub-dashboard/internal/infrastructure/scheduler/jobs"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	seedPath := flag.String("seed", "", "path to a JSON file with teachers and courses to load")
	migrateOnly := flag.Bool("migrate-only", false, "apply migrations (and seed) then exit")
	flag.Parse()

	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *seedPath, *migrateOnly); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, seedPath string, migrateOnly bool) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, err := bootstrap.NewLogger(cfg, "worker")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting EduHub Dashboard Worker", zap.String("env", string(cfg.App.Environment)))
	for _, w := range cfg.Warnings() {
		log.Warn("config warning", zap.String("warning", w))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ПОДКЛЮЧЕНИЕ К ХРАНИЛИЩАМ
	// ─────────────────────────────────────────────────────────────────────────
	stores, err := bootstrap.OpenStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer func() {
		stores.Close()
		log.Info("stores closed")
	}()

	// Без базы студентов сверять нечего
	if stores.Students == nil {
		return fmt.Errorf("student store not configured: %w", stores.StudentErr)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ЗАПУСК МИГРАЦИЙ
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("checking student store migrations...")
	migrator := postgres.NewMigrator(stores.Postgres)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run student store migrations: %w", err)
	}
	if status, err := migrator.Status(ctx); err == nil {
		applied := 0
		for _, m := range status {
			if m.IsApplied {
				applied++
			}
		}
		log.Info("student store migrated", zap.Int("applied", applied), zap.Int("known", len(status)))
	}

	// База преподавателей не критична: при недоступности сверка всё равно
	// запускается, а миграции применятся при следующем старте
	if stores.EnrollmentDB != nil {
		if err := stores.EnrollmentDB.Migrate(log); err != nil {
			log.Error("enrollment store migrations failed", zap.Error(err))
		}
	} else {
		log.Warn("enrollment store not configured, skipping its migrations", zap.Error(stores.EnrollmentErr))
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ЗАГРУЗКА СПРАВОЧНЫХ ДАННЫХ
	// ─────────────────────────────────────────────────────────────────────────
	if seedPath != "" {
		if stores.EnrollmentRepo == nil {
			return fmt.Errorf("cannot seed: %w", stores.EnrollmentErr)
		}
		if err := seed(ctx, seedPath, stores.EnrollmentRepo, log); err != nil {
			return fmt.Errorf("failed to seed: %w", err)
		}
	}

	if migrateOnly {
		log.Info("migrate-only mode, exiting")
		return nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. РЕГИСТРАЦИЯ ЗАДАЧ
	// ─────────────────────────────────────────────────────────────────────────
	var invalidator command.CacheInvalidator
	if stores.Dashboard != nil {
		invalidator = stores.Dashboard
	}

	reconciler := command.NewReconcileEnrollmentsHandler(
		stores.Students,
		stores.Enrollments,
		stores.Ledger,
		invalidator,
		command.ReconcileEnrollmentsConfig{
			BatchSize:   cfg.Reconcile.BatchSize,
			MaxAttempts: cfg.Reconcile.MaxAttempts,
		},
		log,
	)

	sched := scheduler.New(scheduler.DefaultConfig(), log)

	if err := sched.Register(
		jobs.NewReconcileEnrollmentsJob(reconciler, cfg.Reconcile.BatchSize, log),
		scheduler.Every(cfg.Reconcile.Interval),
	); err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}

	// Обновлять ленту имеет смысл только при наличии общего кеша
	switch {
	case cfg.JobFeed.URL == "":
		log.Info("job feed not configured, refresh_job_feed disabled")
	case stores.Jobs == nil:
		log.Warn("redis not configured, refresh_job_feed disabled", zap.Error(stores.CacheErr))
	default:
		if err := sched.Register(
			jobs.NewRefreshJobFeedJob(bootstrap.NewJobsHandler(cfg, stores, log), log),
			scheduler.Every(cfg.JobFeed.RefreshInterval),
		); err != nil {
			return fmt.Errorf("failed to register refresh_job_feed job: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК ПЛАНИРОВЩИКА
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	log.Info("EduHub Dashboard Worker is running",
		zap.Duration("reconcile_interval", cfg.Reconcile.Interval),
		zap.Duration("job_feed_refresh_interval", cfg.JobFeed.RefreshInterval),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal")

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop failed", zap.Error(err))
	}

	log.Info("shutdown completed successfully")
	return nil
}
