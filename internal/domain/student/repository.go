package student

import (
	"context"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт основного хранилища студентов.
// Реализации находятся в infrastructure/persistence/postgres.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции основного хранилища студентов.
// Ошибки связи оборачиваются в shared.ErrStoreUnavailable.
type Repository interface {
	// Create создаёт нового студента.
	// Возвращает shared.ErrStudentAlreadyExists, если email занят.
	Create(ctx context.Context, s *Student) error

	// GetByEmail возвращает студента вместе с записями прогресса.
	// Возвращает shared.ErrStudentNotFound, если студент не найден.
	GetByEmail(ctx context.Context, email shared.Email) (*Student, error)

	// Exists проверяет существование студента.
	Exists(ctx context.Context, email shared.Email) (bool, error)

	// UpsertProgress идемпотентно записывает прогресс по модулю.
	// Возвращает shared.ErrStudentNotFound, если студента нет.
	UpsertProgress(ctx context.Context, u ProgressUpdate) (*ProgressEntry, error)

	// ListProgress возвращает записи прогресса студента по курсу.
	ListProgress(ctx context.Context, email shared.Email, courseID shared.CourseID) ([]ProgressEntry, error)

	// Ping проверяет соединение с хранилищем.
	Ping(ctx context.Context) error
}
