package enrollmentdb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func statement() (string, int64) { return "SELECT * FROM courses", 1 }

func TestGormLogger_Trace(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newGormLogger(zap.New(core), gormlogger.Warn, 100*time.Millisecond)
	ctx := context.Background()

	l.Trace(ctx, time.Now(), statement, errors.New("syntax error"))
	l.Trace(ctx, time.Now(), statement, gorm.ErrRecordNotFound)
	l.Trace(ctx, time.Now(), statement, gorm.ErrDuplicatedKey)
	l.Trace(ctx, time.Now().Add(-time.Second), statement, nil)
	l.Trace(ctx, time.Now(), statement, nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "enrollment store query failed", entries[0].Message)
	assert.Equal(t, "SELECT * FROM courses", entries[0].ContextMap()["sql"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "slow enrollment store query", entries[1].Message)
}

func TestGormLogger_LogMode(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := newGormLogger(zap.New(core), gormlogger.Warn, 0)

	base.LogMode(gormlogger.Silent).Trace(context.Background(), time.Now(), statement, errors.New("boom"))
	assert.Zero(t, logs.Len())

	verbose := base.LogMode(gormlogger.Info)
	verbose.Trace(context.Background(), time.Now(), statement, nil)
	verbose.Info(context.Background(), "migrated %d tables", 3)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "migrated 3 tables", logs.All()[1].Message)

	base.Info(context.Background(), "hidden at warn level")
	assert.Equal(t, 2, logs.Len())
}
