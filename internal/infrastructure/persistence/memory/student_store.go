// Package memory provides in-process implementations of the store, ledger
// and cache contracts. They back the application tests and honor the same
// uniqueness and not-found semantics as the PostgreSQL adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
	"github.com/eduhub/eduhub-dashboard/internal/domain/student"
)

// Hook runs before every store operation. A non-nil error is returned to
// the caller instead of executing the operation.
type Hook func(ctx context.Context, op string) error

type hooks struct {
	mu   sync.RWMutex
	hook Hook
}

// SetHook installs the hook; nil removes it.
func (h *hooks) SetHook(fn Hook) {
	h.mu.Lock()
	h.hook = fn
	h.mu.Unlock()
}

func (h *hooks) before(ctx context.Context, op string) error {
	h.mu.RLock()
	fn := h.hook
	h.mu.RUnlock()
	if fn != nil {
		if err := fn(ctx, op); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// StudentStore implements student.Repository.
type StudentStore struct {
	hooks

	mu       sync.RWMutex
	students map[shared.Email]student.Student
	progress map[shared.Email][]student.ProgressEntry
}

// NewStudentStore creates an empty store.
func NewStudentStore() *StudentStore {
	return &StudentStore{
		students: make(map[shared.Email]student.Student),
		progress: make(map[shared.Email][]student.ProgressEntry),
	}
}

func (s *StudentStore) Create(ctx context.Context, st *student.Student) error {
	if err := s.before(ctx, "Create"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[st.Email]; ok {
		return shared.ErrStudentAlreadyExists
	}
	cp := *st
	cp.Progress = nil
	s.students[st.Email] = cp
	return nil
}

func (s *StudentStore) GetByEmail(ctx context.Context, email shared.Email) (*student.Student, error) {
	if err := s.before(ctx, "GetByEmail"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.students[email]
	if !ok {
		return nil, shared.ErrStudentNotFound
	}
	st.Progress = append([]student.ProgressEntry{}, s.progress[email]...)
	return &st, nil
}

func (s *StudentStore) Exists(ctx context.Context, email shared.Email) (bool, error) {
	if err := s.before(ctx, "Exists"); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.students[email]
	return ok, nil
}

func (s *StudentStore) UpsertProgress(ctx context.Context, u student.ProgressUpdate) (*student.ProgressEntry, error) {
	if err := s.before(ctx, "UpsertProgress"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.students[u.Email]; !ok {
		return nil, shared.ErrStudentNotFound
	}

	now := time.Now().UTC()
	entries := s.progress[u.Email]
	for i := range entries {
		if entries[i].CourseID == u.CourseID && entries[i].ModuleID == u.ModuleID {
			entries[i] = u.ApplyTo(&entries[i], now)
			e := entries[i]
			return &e, nil
		}
	}

	e := u.ApplyTo(nil, now)
	s.progress[u.Email] = append(entries, e)
	return &e, nil
}

func (s *StudentStore) ListProgress(ctx context.Context, email shared.Email, courseID shared.CourseID) ([]student.ProgressEntry, error) {
	if err := s.before(ctx, "ListProgress"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]student.ProgressEntry, 0)
	for _, e := range s.progress[email] {
		if e.CourseID == courseID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *StudentStore) Ping(ctx context.Context) error {
	return s.before(ctx, "Ping")
}

var _ student.Repository = (*StudentStore)(nil)
