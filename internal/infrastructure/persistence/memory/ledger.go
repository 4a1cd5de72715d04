package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eduhub/eduhub-dashboard/internal/domain/reconciliation"
	"github.com/eduhub/eduhub-dashboard/internal/domain/shared"
)

// Ledger implements reconciliation.Ledger.
type Ledger struct {
	hooks

	mu       sync.Mutex
	failures map[string]reconciliation.Failure
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{failures: make(map[string]reconciliation.Failure)}
}

func (l *Ledger) Record(ctx context.Context, f *reconciliation.Failure) error {
	if err := l.before(ctx, "Record"); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.failures[f.ID]; ok {
		return shared.NewDomainError(shared.DomainStudentStore, "RecordReconciliation", shared.ErrAlreadyExists, "failure already recorded")
	}
	l.failures[f.ID] = *f
	return nil
}

func (l *Ledger) ListPending(ctx context.Context, limit, maxAttempts int) ([]*reconciliation.Failure, error) {
	if err := l.before(ctx, "ListPending"); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]*reconciliation.Failure, 0)
	for _, f := range l.failures {
		if f.ResolvedAt != nil {
			continue
		}
		if maxAttempts > 0 && f.Attempts >= maxAttempts {
			continue
		}
		cp := f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *Ledger) CountExhausted(ctx context.Context, maxAttempts int) (int, error) {
	if err := l.before(ctx, "CountExhausted"); err != nil {
		return 0, err
	}
	if maxAttempts <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, f := range l.failures {
		if f.ResolvedAt == nil && f.Attempts >= maxAttempts {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) MarkResolved(ctx context.Context, id string, at time.Time) error {
	if err := l.before(ctx, "MarkResolved"); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.failures[id]
	if !ok {
		return nil
	}
	f.ResolvedAt = &at
	f.LastAttemptAt = &at
	l.failures[id] = f
	return nil
}

func (l *Ledger) MarkAttempt(ctx context.Context, id string, reason string, at time.Time) error {
	if err := l.before(ctx, "MarkAttempt"); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.failures[id]
	if !ok {
		return nil
	}
	f.Attempts++
	f.Reason = reason
	f.LastAttemptAt = &at
	l.failures[id] = f
	return nil
}

// All returns every recorded failure, oldest first.
func (l *Ledger) All() []reconciliation.Failure {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]reconciliation.Failure, 0, len(l.failures))
	for _, f := range l.failures {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

var _ reconciliation.Ledger = (*Ledger)(nil)
