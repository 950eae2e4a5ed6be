package logger

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
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGormLogger(level gormlogger.LogLevel, opts ...GormLoggerOption) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), level, opts...), recorded
}

func TestNewGormLogger_Options(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info,
		WithSlowThreshold(500*time.Millisecond),
		WithIgnoreRecordNotFoundError(false),
	)

	assert.Equal(t, gormlogger.Info, gl.logLevel)
	assert.Equal(t, 500*time.Millisecond, gl.slowThreshold)
	assert.False(t, gl.ignoreRecordNotFoundError)
}

func TestGormLogger_LogMode(t *testing.T) {
	gl, _ := newObservedGormLogger(gormlogger.Info)

	quieter, ok := gl.LogMode(gormlogger.Warn).(*GormLogger)
	require.True(t, ok)
	assert.Equal(t, gormlogger.Warn, quieter.logLevel)
	// the original is untouched
	assert.Equal(t, gormlogger.Info, gl.logLevel)
}

func TestGormLogger_LevelGating(t *testing.T) {
	gl, recorded := newObservedGormLogger(gormlogger.Warn)
	ctx := context.Background()

	gl.Info(ctx, "migrating table %s", "canonical_products")
	assert.Empty(t, recorded.All())

	gl.Warn(ctx, "retrying connection %d", 2)
	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Message, "retrying connection 2")
	assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
}

func TestGormLogger_Trace(t *testing.T) {
	statement := func() (string, int64) {
		return "SELECT * FROM canonical_products WHERE tenant_id = $1", 12
	}

	t.Run("failure logs at error with the statement", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), statement, errors.New("connection reset"))

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "query failed", logs[0].Message)
		assert.Equal(t, zapcore.ErrorLevel, logs[0].Level)
	})

	t.Run("record not found is suppressed by default", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Error)

		gl.Trace(context.Background(), time.Now(), statement, gormlogger.ErrRecordNotFound)
		assert.Empty(t, recorded.All())
	})

	t.Run("slow query logs at warn", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Warn, WithSlowThreshold(time.Nanosecond))

		gl.Trace(context.Background(), time.Now().Add(-time.Second), statement, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Contains(t, logs[0].Message, "slow query")
		assert.Equal(t, zapcore.WarnLevel, logs[0].Level)
	})

	t.Run("normal query logs at debug", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Info)

		gl.Trace(context.Background(), time.Now(), statement, nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "query", logs[0].Message)
		assert.Equal(t, zapcore.DebugLevel, logs[0].Level)
	})

	t.Run("silent logs nothing", func(t *testing.T) {
		gl, recorded := newObservedGormLogger(gormlogger.Silent)

		gl.Trace(context.Background(), time.Now(), statement, nil)
		assert.Empty(t, recorded.All())
	})
}

func TestMapGormLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected gormlogger.LogLevel
	}{
		{"silent", gormlogger.Silent},
		{"error", gormlogger.Error},
		{"warn", gormlogger.Warn},
		{"info", gormlogger.Info},
		{"debug", gormlogger.Info},
		{"", gormlogger.Warn},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, MapGormLogLevel(tt.level))
		})
	}
}
