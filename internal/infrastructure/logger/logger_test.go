package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{name: "default config", cfg: DefaultConfig()},
		{name: "production config", cfg: ProductionConfig()},
		{name: "debug console", cfg: &Config{Level: "debug", Format: "console", Output: "stderr", TimeFormat: "2006-01-02T15:04:05Z07:00"}},
		{name: "unknown level falls back", cfg: &Config{Level: "loud", Format: "json", Output: "stdout", TimeFormat: "2006-01-02T15:04:05Z07:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"unknown", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestNewWriter(t *testing.T) {
	t.Run("standard streams", func(t *testing.T) {
		assert.NotNil(t, newWriter("stdout"))
		assert.NotNil(t, newWriter("stderr"))
		assert.NotNil(t, newWriter("STDOUT"))
	})

	t.Run("file path", func(t *testing.T) {
		tmp, err := os.CreateTemp("", "catalogsync-*.log")
		require.NoError(t, err)
		defer os.Remove(tmp.Name())
		tmp.Close()

		assert.NotNil(t, newWriter(tmp.Name()))
	})
}

func TestJSONOutputShape(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		newEncoder(&Config{Format: "json", TimeFormat: "2006-01-02T15:04:05Z07:00"}),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	log := zap.New(core)

	log.Info("sync run finished",
		zap.String("run_id", "f6b1"),
		zap.String("system", "OZON"),
		zap.Int("created", 3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sync run finished", line["msg"])
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "OZON", line["system"])
	assert.Equal(t, float64(3), line["created"])
}

func TestLevelGating(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		newEncoder(&Config{Format: "json", TimeFormat: "2006-01-02T15:04:05Z07:00"}),
		zapcore.AddSync(&buf),
		zapcore.InfoLevel,
	)
	log := zap.New(core)

	log.Debug("resolved brand token")
	assert.Empty(t, buf.String())

	log.Info("sync run started")
	assert.Contains(t, buf.String(), "sync run started")
}
