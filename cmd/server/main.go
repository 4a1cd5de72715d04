// Package main - точка входа HTTP API EduHub Dashboard.
//
// Сервер объединяет два хранилища: базу студентов (PostgreSQL через pgx) и
// базу преподавателей и записей на курсы (PostgreSQL через gorm), а также
// внешнюю ленту вакансий и сервис проверки компаний.
//
// Если база преподавателей недоступна, дашборд отдаётся частично.
// Если база студентов не настроена, маршруты дашборда отвечают 503,
// а health и jobs продолжают работать.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/config"
	"github.com/eduhub/eduhub-dashboard/internal/application/command"
	"github.com/eduhub/eduhub-dashboard/internal/application/query"
	"github.com/eduhub/eduhub-dashboard/internal/bootstrap"
	httpserver "github.com/eduhub/eduhub-dashboard/internal/interface/http"
	"github.com/eduhub/eduhub-dashboard/internal/interface/http/handlers"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log, err := bootstrap.NewLogger(cfg, "server")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting EduHub Dashboard API",
		zap.String("env", string(cfg.App.Environment)),
		zap.String("addr", cfg.HTTP.Addr()),
	)
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

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ИНИЦИАЛИЗАЦИЯ APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		Jobs:     bootstrap.NewJobsHandler(cfg, stores, log),
		Verifier: bootstrap.NewVerifier(cfg, log),
		Logger:   log,
	}

	// Без настроенной базы студентов обработчики не создаются, и маршруты отвечают 503
	if stores.Students != nil {
		dashboardHandler := query.NewGetDashboardSummaryHandler(
			stores.Students,
			stores.Enrollments,
			stores.Dashboard,
			log,
			query.GetDashboardSummaryConfig{
				CacheTTL:          cfg.Dashboard.CacheTTL,
				EnrollmentTimeout: cfg.Dashboard.EnrollmentReadTimeout,
				ComputeTimeout:    cfg.HTTP.RequestTimeout,
			},
		)

		deps.Dashboard = dashboardHandler
		deps.Enroll = command.NewEnrollHandler(stores.Students, stores.Enrollments, dashboardHandler, log)
		deps.Progress = command.NewRecordProgressHandler(stores.Students, stores.Enrollments, stores.Ledger, dashboardHandler, log)
		deps.Register = command.NewRegisterStudentHandler(stores.Students, log, cfg.Auth.BcryptCost)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	stores.HealthChecks(health)
	deps.HealthChecker = health

	// ─────────────────────────────────────────────────────────────────────────
	// 6. ЗАПУСК HTTP СЕРВЕРА
	// ─────────────────────────────────────────────────────────────────────────
	serverCfg := httpserver.DefaultConfig()
	serverCfg.Host = cfg.HTTP.Host
	serverCfg.Port = cfg.HTTP.Port
	serverCfg.Version = cfg.App.Version
	if cfg.HTTP.ReadTimeout > 0 {
		serverCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	}
	if cfg.HTTP.WriteTimeout > 0 {
		serverCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	}
	if cfg.HTTP.RequestTimeout > 0 {
		serverCfg.RequestTimeout = cfg.HTTP.RequestTimeout
	}
	if len(cfg.HTTP.AllowedOrigins) > 0 {
		serverCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	}

	server := httpserver.NewServer(serverCfg, deps)

	errCh := server.StartAsync()

	log.Info("EduHub Dashboard API is running", zap.String("addr", serverCfg.Address()))

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ОЖИДАНИЕ СИГНАЛА ЗАВЕРШЕНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown failed", zap.Error(err))
		return err
	}

	log.Info("EduHub Dashboard API stopped")
	return nil
}
