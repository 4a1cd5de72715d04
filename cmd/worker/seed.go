package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// seedFile описывает формат файла справочных данных.
type seedFile struct {
	Teachers []struct {
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		Subject     string `json:"subject"`
	} `json:"teachers"`
	Courses []struct {
		ID           string `json:"id"`
		Title        string `json:"title"`
		TeacherEmail string `json:"teacher_email"`
		TotalModules int    `json:"total_modules"`
	} `json:"courses"`
}

// referenceWriter - часть репозитория записей, которая создаёт справочники.
type referenceWriter interface {
	CreateTeacher(ctx context.Context, t *enrollment.Teacher) error
	CreateCourse(ctx context.Context, c *enrollment.Course) error
}

// seed загружает преподавателей и курсы. Уже существующие записи пропускаются.
func seed(ctx context.Context, path string, repo referenceWriter, log *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var data seedFile
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	now := time.Now().UTC()
	var created, skipped int

	for _, t := range data.Teachers {
		email, err := shared.NewEmail(t.Email)
		if err != nil {
			return fmt.Errorf("teacher %q: %w", t.Email, err)
		}
		err = repo.CreateTeacher(ctx, &enrollment.Teacher{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: t.DisplayName,
			Subject:     t.Subject,
			CreatedAt:   now,
		})
		switch {
		case shared.IsAlreadyExists(err):
			skipped++
		case err != nil:
			return fmt.Errorf("teacher %q: %w", t.Email, err)
		default:
			created++
		}
	}

	for _, c := range data.Courses {
		id, err := shared.NewCourseID(c.ID)
		if err != nil {
			return fmt.Errorf("course %q: %w", c.ID, err)
		}
		course := &enrollment.Course{
			ID:           id,
			Title:        c.Title,
			TotalModules: c.TotalModules,
			CreatedAt:    now,
		}
		if c.TeacherEmail != "" {
			if course.TeacherEmail, err = shared.NewEmail(c.TeacherEmail); err != nil {
				return fmt.Errorf("course %q: %w", c.ID, err)
			}
		}

		err = repo.CreateCourse(ctx, course)
		switch {
		case shared.IsAlreadyExists(err):
			skipped++
		case err != nil:
			return fmt.Errorf("course %q: %w", c.ID, err)
		default:
			created++
		}
	}

	log.Info("reference data seeded",
		zap.String("file", path),
		zap.Int("created", created),
		zap.Int("skipped", skipped),
	)
	return nil
}
