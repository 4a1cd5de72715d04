package student

import (
	"math"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// ProgressEntry - запись прогресса студента по одному модулю курса.
// Уникальна по (email, courseId, moduleId).
type ProgressEntry struct {
	CourseID shared.CourseID
	ModuleID shared.ModuleID

	// Completed - модуль завершён.
	Completed bool

	// QuizScore - результат теста 0-100, nil если теста не было.
	QuizScore *int

	// CompletedAt - время первого завершения. Повторная запись его не сдвигает.
	CompletedAt *time.Time

	// RecordedAt - время первой записи, задаёт порядок записей.
	RecordedAt time.Time
	UpdatedAt  time.Time
}

// ProgressUpdate - входные данные для записи прогресса.
type ProgressUpdate struct {
	Email     shared.Email
	CourseID  shared.CourseID
	ModuleID  shared.ModuleID
	Completed bool
	QuizScore *int
}

// NewProgressUpdate валидирует входные данные записи прогресса.
func NewProgressUpdate(email, courseID, moduleID string, completed bool, quizScore *int) (ProgressUpdate, error) {
	e, err := shared.NewEmail(email)
	if err != nil {
		return ProgressUpdate{}, err
	}
	c, err := shared.NewCourseID(courseID)
	if err != nil {
		return ProgressUpdate{}, err
	}
	m, err := shared.NewModuleID(moduleID)
	if err != nil {
		return ProgressUpdate{}, err
	}
	if quizScore != nil && (*quizScore < 0 || *quizScore > 100) {
		return ProgressUpdate{}, shared.ErrInvalidQuizScore
	}

	return ProgressUpdate{
		Email:     e,
		CourseID:  c,
		ModuleID:  m,
		Completed: completed,
		QuizScore: quizScore,
	}, nil
}

// ApplyTo применяет обновление к существующей записи (или создаёт новую).
// Идемпотентно: повторное применение того же обновления даёт ту же запись.
func (u ProgressUpdate) ApplyTo(existing *ProgressEntry, now time.Time) ProgressEntry {
	entry := ProgressEntry{
		CourseID:   u.CourseID,
		ModuleID:   u.ModuleID,
		RecordedAt: now,
	}
	if existing != nil {
		entry = *existing
	}

	entry.Completed = u.Completed
	entry.QuizScore = u.QuizScore
	entry.UpdatedAt = now

	switch {
	case !u.Completed:
		entry.CompletedAt = nil
	case entry.CompletedAt == nil:
		t := now
		entry.CompletedAt = &t
	}

	return entry
}

// ══════════════════════════════════════════════════════════════════════════════
// CALCULATIONS
// ══════════════════════════════════════════════════════════════════════════════

// CountCompleted возвращает количество завершённых записей.
func CountCompleted(entries []ProgressEntry) int {
	n := 0
	for _, e := range entries {
		if e.Completed {
			n++
		}
	}
	return n
}

// Percent вычисляет процент завершения: completed / total * 100.
// Результат ограничен диапазоном 0-100 и округлён до сотых.
func Percent(completed, total int) float64 {
	if total <= 0 || completed <= 0 {
		return 0
	}
	if completed > total {
		completed = total
	}
	p := float64(completed) / float64(total) * 100
	return math.Round(p*100) / 100
}
