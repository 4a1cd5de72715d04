// Package student содержит доменную модель студента для основного хранилища.
//
// Пакет определяет:
//
//   - Сущность Student (ключ - email, мягкий жизненный цикл через Status)
//   - ProgressEntry и ProgressUpdate - идемпотентные записи прогресса по модулям
//   - Интерфейс Repository, реализуемый в infrastructure/persistence/postgres
//
// Основное хранилище - источник истины для прогресса. Записи о зачислениях
// живут в отдельном хранилище (пакет enrollment), ссылка по email между ними
// не проверяется базой данных и проверяется только при записи.
//
// Пример:
//
//	s, err := student.NewStudent(student.NewStudentParams{
//	    ID:          uuid.New().String(),
//	    Email:       "a@x.com",
//	    DisplayName: "Ada",
//	})
//
//	u, err := student.NewProgressUpdate("a@x.com", "course-1", "mod-1", true, &score)
//	entry := u.ApplyTo(nil, time.Now())
package student
