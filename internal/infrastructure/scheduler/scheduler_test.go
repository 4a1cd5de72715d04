package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type funcJob struct {
	name string
	run  func(ctx context.Context) error
}

func (j *funcJob) Name() string                  { return j.name }
func (j *funcJob) Description() string           { return "test job " + j.name }
func (j *funcJob) Run(ctx context.Context) error { return j.run(ctx) }

func testConfig() Config {
	return Config{Tick: 5 * time.Millisecond, RunOnStart: true, HistoryLimit: 10}
}

func TestScheduler_RegisterValidation(t *testing.T) {
	s := New(testConfig(), zap.NewNop())
	job := &funcJob{name: "a", run: func(context.Context) error { return nil }}

	assert.ErrorIs(t, s.Register(nil, Every(time.Second)), ErrNilJob)
	assert.ErrorIs(t, s.Register(job, nil), ErrNilSchedule)
	require.NoError(t, s.Register(job, Every(time.Second)))
	assert.ErrorIs(t, s.Register(job, Every(time.Second)), ErrJobAlreadyExists)
}

func TestScheduler_RunsOnStartAndStops(t *testing.T) {
	s := New(testConfig(), zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Register(&funcJob{name: "count", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)

	infos := s.ListJobs()
	require.Len(t, infos, 1)
	assert.Equal(t, int64(1), infos[0].RunCount)
	assert.Equal(t, "@every 1h0m0s", infos[0].Schedule)
	assert.True(t, infos[0].NextRun.After(infos[0].LastRun))
}

func TestScheduler_JobDoesNotOverlap(t *testing.T) {
	s := New(testConfig(), zap.NewNop())

	var (
		active  atomic.Int32
		maxSeen atomic.Int32
		runs    atomic.Int32
	)
	require.NoError(t, s.Register(&funcJob{name: "slow", run: func(ctx context.Context) error {
		n := active.Add(1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		defer active.Add(-1)
		runs.Add(1)
		select {
		case <-time.After(30 * time.Millisecond):
		case <-ctx.Done():
		}
		return nil
	}}, Every(time.Millisecond)))

	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(testConfig(), zap.NewNop())
	boom := errors.New("boom")

	require.NoError(t, s.Register(&funcJob{name: "ok", run: func(context.Context) error { return nil }}, Every(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "fail", run: func(context.Context) error { return boom }}, Every(time.Hour)))
	require.NoError(t, s.Register(&funcJob{name: "panic", run: func(context.Context) error { panic("bad") }}, Every(time.Hour)))

	res, err := s.RunNow(context.Background(), "ok")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)

	res, err = s.RunNow(context.Background(), "fail")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)

	_, err = s.RunNow(context.Background(), "panic")
	assert.ErrorIs(t, err, ErrJobPanicked)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	history := s.History(0)
	require.Len(t, history, 3)
	assert.Equal(t, "ok", history[0].JobName)

	for _, info := range s.ListJobs() {
		if info.Name == "fail" {
			assert.Equal(t, int64(1), info.FailCount)
		}
	}
}

func TestScheduler_JobTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.JobTimeout = 10 * time.Millisecond
	s := New(cfg, zap.NewNop())

	require.NoError(t, s.Register(&funcJob{name: "hang", run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}, Every(time.Hour)))

	_, err := s.RunNow(context.Background(), "hang")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestScheduler_DisabledJobIsSkipped(t *testing.T) {
	s := New(testConfig(), zap.NewNop())

	var runs atomic.Int32
	require.NoError(t, s.Register(&funcJob{name: "off", run: func(context.Context) error {
		runs.Add(1)
		return nil
	}}, Every(time.Millisecond)))
	require.NoError(t, s.DisableJob("off"))
	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Stop())

	assert.Zero(t, runs.Load())
}

func TestEvery(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, base.Add(time.Minute), Every(0).Next(base))
	assert.Equal(t, base.Add(30*time.Second), Every(30*time.Second).Next(base))
}
