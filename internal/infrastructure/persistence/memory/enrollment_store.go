package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/enrollment"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

type enrollmentKey struct {
	email    shared.Email
	courseID shared.CourseID
}

// EnrollmentStore implements enrollment.Repository.
type EnrollmentStore struct {
	hooks

	mu          sync.RWMutex
	courses     map[shared.CourseID]enrollment.Course
	enrollments map[enrollmentKey]enrollment.Enrollment
}

// NewEnrollmentStore creates an empty store.
func NewEnrollmentStore() *EnrollmentStore {
	return &EnrollmentStore{
		courses:     make(map[shared.CourseID]enrollment.Course),
		enrollments: make(map[enrollmentKey]enrollment.Enrollment),
	}
}

// AddCourse seeds a course.
func (s *EnrollmentStore) AddCourse(c enrollment.Course) {
	s.mu.Lock()
	s.courses[c.ID] = c
	s.mu.Unlock()
}

// RemoveCourse drops a course, leaving its enrollments dangling.
func (s *EnrollmentStore) RemoveCourse(id shared.CourseID) {
	s.mu.Lock()
	delete(s.courses, id)
	s.mu.Unlock()
}

// Count returns the number of stored enrollments.
func (s *EnrollmentStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.enrollments)
}

func (s *EnrollmentStore) GetCourse(ctx context.Context, id shared.CourseID) (*enrollment.Course, error) {
	if err := s.before(ctx, "GetCourse"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return &c, nil
}

func (s *EnrollmentStore) GetEnrollment(ctx context.Context, email shared.Email, courseID shared.CourseID) (*enrollment.Enrollment, error) {
	if err := s.before(ctx, "GetEnrollment"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.enrollments[enrollmentKey{email, courseID}]
	if !ok {
		return nil, shared.ErrEnrollmentNotFound
	}
	return s.withCourse(e), nil
}

func (s *EnrollmentStore) ListByStudent(ctx context.Context, email shared.Email) ([]*enrollment.Enrollment, error) {
	if err := s.before(ctx, "ListByStudent"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*enrollment.Enrollment, 0)
	for k, e := range s.enrollments {
		if k.email == email {
			out = append(out, s.withCourse(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].EnrolledAt.Equal(out[j].EnrolledAt) {
			return out[i].EnrolledAt.Before(out[j].EnrolledAt)
		}
		return out[i].CourseID < out[j].CourseID
	})
	return out, nil
}

func (s *EnrollmentStore) Create(ctx context.Context, e *enrollment.Enrollment) error {
	if err := s.before(ctx, "Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.courses[e.CourseID]; !ok {
		return shared.ErrCourseNotFound
	}
	key := enrollmentKey{e.StudentEmail, e.CourseID}
	if _, ok := s.enrollments[key]; ok {
		return shared.ErrDuplicateEnroll
	}
	cp := *e
	cp.Course = nil
	s.enrollments[key] = cp
	return nil
}

func (s *EnrollmentStore) UpdateProgress(ctx context.Context, change enrollment.ProgressChange) error {
	if err := s.before(ctx, "UpdateProgress"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := enrollmentKey{change.StudentEmail, change.CourseID}
	e, ok := s.enrollments[key]
	if !ok {
		return shared.ErrEnrollmentNotFound
	}
	e.ProgressPercent = change.ProgressPercent
	e.Completed = change.Completed
	e.UpdatedAt = time.Now().UTC()
	s.enrollments[key] = e
	return nil
}

func (s *EnrollmentStore) Ping(ctx context.Context) error {
	return s.before(ctx, "Ping")
}

// withCourse must be called with s.mu held.
func (s *EnrollmentStore) withCourse(e enrollment.Enrollment) *enrollment.Enrollment {
	if c, ok := s.courses[e.CourseID]; ok {
		e.Course = &c
	}
	return &e
}

var _ enrollment.Repository = (*EnrollmentStore)(nil)
