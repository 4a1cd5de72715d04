// Package student содержит доменную модель студента и его прогресса.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package student

import (
	"errors"
	"strings"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Cohort представляет поток студентов (например, "2024-spring").
type Cohort string

// IsValid проверяет корректность когорты. Пустая когорта допустима.
func (c Cohort) IsValid() bool {
	return len(c) <= 30
}

// String возвращает строковое представление когорты.
func (c Cohort) String() string {
	return string(c)
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет жизненный цикл записи студента.
// Физического удаления нет - только смена статуса.
type Status string

const (
	// StatusActive - студент учится.
	StatusActive Status = "active"
	// StatusInactive - студент временно неактивен.
	StatusInactive Status = "inactive"
	// StatusArchived - запись архивирована, но не удалена.
	StatusArchived Status = "archived"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - запись студента в основном хранилище. Ключ - email.
type Student struct {
	// ID - внутренний идентификатор (UUID).
	ID string

	// Email - уникальный идентификатор студента во всех хранилищах.
	Email shared.Email

	// DisplayName - отображаемое имя.
	DisplayName string

	// Cohort - поток, к которому принадлежит студент.
	Cohort Cohort

	// PasswordHash - bcrypt-хеш, задаётся при регистрации.
	PasswordHash string

	// Status - текущий статус записи.
	Status Status

	// Progress - записи прогресса по модулям, в порядке первой записи.
	Progress []ProgressEntry

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidDisplayName - невалидное отображаемое имя.
	ErrInvalidDisplayName = shared.NewDomainError(shared.DomainStudentStore, "Validate", shared.ErrInvalidInput, "invalid display name: must be 1-100 chars")

	// ErrInvalidCohort - невалидная когорта.
	ErrInvalidCohort = shared.NewDomainError(shared.DomainStudentStore, "Validate", shared.ErrInvalidInput, "invalid cohort: must be at most 30 chars")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания нового студента.
type NewStudentParams struct {
	ID           string
	Email        string
	DisplayName  string
	Cohort       Cohort
	PasswordHash string
}

// NewStudent создаёт нового студента с валидацией всех полей.
func NewStudent(params NewStudentParams) (*Student, error) {
	if params.ID == "" {
		return nil, errors.New("student id is required")
	}

	email, err := shared.NewEmail(params.Email)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if len(displayName) == 0 || len(displayName) > 100 {
		return nil, ErrInvalidDisplayName
	}

	if !params.Cohort.IsValid() {
		return nil, ErrInvalidCohort
	}

	now := time.Now().UTC()

	return &Student{
		ID:           params.ID,
		Email:        email,
		DisplayName:  displayName,
		Cohort:       params.Cohort,
		PasswordHash: params.PasswordHash,
		Status:       StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressFor возвращает записи прогресса по одному курсу.
func (s *Student) ProgressFor(courseID shared.CourseID) []ProgressEntry {
	entries := make([]ProgressEntry, 0)
	for _, e := range s.Progress {
		if e.CourseID == courseID {
			entries = append(entries, e)
		}
	}
	return entries
}

// CompletedModules возвращает количество завершённых модулей по курсу.
func (s *Student) CompletedModules(courseID shared.CourseID) int {
	return CountCompleted(s.ProgressFor(courseID))
}
