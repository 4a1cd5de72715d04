package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompositeHealthChecker(t *testing.T) {
	t.Run("no checks is healthy", func(t *testing.T) {
		status := NewCompositeHealthChecker("v").Check(context.Background())
		assert.True(t, status.Healthy)
		assert.True(t, status.Ready)
		assert.Equal(t, "v", status.Version)
	})

	t.Run("non-critical failure keeps ready", func(t *testing.T) {
		c := NewCompositeHealthChecker("v")
		c.AddCheck("student_store", func(context.Context) error { return nil }, true)
		c.AddCheck("cache", NewStaticFailure(errors.New("redis not configured")), false)

		status := c.Check(context.Background())
		assert.False(t, status.Healthy)
		assert.True(t, status.Ready)
		assert.Equal(t, "Some checks failed: cache", status.Message)
		assert.Equal(t, "redis not configured", status.Checks["cache"].Message)
		assert.True(t, status.Checks["student_store"].Healthy)
	})

	t.Run("critical failure is not ready", func(t *testing.T) {
		c := NewCompositeHealthChecker("v")
		c.AddCheck("student_store", NewStaticFailure(errors.New("down")), true)

		status := c.Check(context.Background())
		assert.False(t, status.Healthy)
		assert.False(t, status.Ready)
		assert.True(t, status.Checks["student_store"].Critical)
	})

	t.Run("slow check times out", func(t *testing.T) {
		c := NewCompositeHealthChecker("v")
		c.SetTimeout(10 * time.Millisecond)
		c.AddCheck("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, true)

		status := c.Check(context.Background())
		assert.False(t, status.Ready)
		assert.Contains(t, status.Checks["slow"].Message, "deadline")
	})
}
