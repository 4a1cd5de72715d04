package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduhub/eduhub-dashboard/internal/application/command"
)

type reconcilerFunc func(ctx context.Context, cmd command.ReconcileEnrollmentsCommand) (*command.ReconcileEnrollmentsResult, error)

func (f reconcilerFunc) Handle(ctx context.Context, cmd command.ReconcileEnrollmentsCommand) (*command.ReconcileEnrollmentsResult, error) {
	return f(ctx, cmd)
}

type refresherFunc func(ctx context.Context) (int, error)

func (f refresherFunc) Refresh(ctx context.Context) (int, error) { return f(ctx) }

func TestReconcileEnrollmentsJob(t *testing.T) {
	var got command.ReconcileEnrollmentsCommand
	job := NewReconcileEnrollmentsJob(reconcilerFunc(func(_ context.Context, cmd command.ReconcileEnrollmentsCommand) (*command.ReconcileEnrollmentsResult, error) {
		got = cmd
		return &command.ReconcileEnrollmentsResult{Processed: 2, Resolved: 1, Failed: 1}, nil
	}), 25, zap.NewNop())

	assert.Equal(t, "reconcile_enrollments", job.Name())
	assert.Nil(t, job.LastResult())

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 25, got.BatchSize)
	require.NotNil(t, job.LastResult())
	assert.Equal(t, 1, job.LastResult().Resolved)
}

func TestReconcileEnrollmentsJob_Error(t *testing.T) {
	boom := errors.New("ledger unavailable")
	job := NewReconcileEnrollmentsJob(reconcilerFunc(func(context.Context, command.ReconcileEnrollmentsCommand) (*command.ReconcileEnrollmentsResult, error) {
		return nil, boom
	}), 0, nil)

	assert.ErrorIs(t, job.Run(context.Background()), boom)
	assert.Nil(t, job.LastResult())
}

func TestRefreshJobFeedJob(t *testing.T) {
	ok := NewRefreshJobFeedJob(refresherFunc(func(context.Context) (int, error) { return 3, nil }), zap.NewNop())
	assert.Equal(t, "refresh_job_feed", ok.Name())
	assert.NoError(t, ok.Run(context.Background()))

	boom := errors.New("upstream 503")
	failing := NewRefreshJobFeedJob(refresherFunc(func(context.Context) (int, error) { return 0, boom }), nil)
	assert.ErrorIs(t, failing.Run(context.Background()), boom)
}
