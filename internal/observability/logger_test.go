// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/scalpel-locator/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("should write colorized console lines", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "locator",
			Colors:      config.ColorConfig{Info: "green"},
		}, zapcore.AddSync(&buf))

		logger.Named("resolver").Info("Healed locator.", zap.String("name", "email"))
		require.NoError(t, logger.Sync())

		out := buf.String()
		assert.Contains(t, out, colorGreen+"INFO"+colorReset)
		assert.Contains(t, out, "locator.resolver.")
		assert.Contains(t, out, "Healed locator.")
		assert.Contains(t, out, `"name": "email"`)
	})

	t.Run("should write json with capital levels", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "locator"}, zapcore.AddSync(&buf))
		logger.Warn("Failed to resolve locator.", zap.String("name", "save"))
		require.NoError(t, logger.Sync())

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "locator", entry["logger"])
		assert.Equal(t, "Failed to resolve locator.", entry["msg"])
		assert.Equal(t, "save", entry["name"])
	})

	t.Run("should fall back to info on an unknown level", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New(config.LoggerConfig{Level: "chatty", Format: "json"}, zapcore.AddSync(&buf))
		logger.Debug("hidden")
		logger.Info("shown")
		require.NoError(t, logger.Sync())
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("should also write to a log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "locator.log")
		var buf bytes.Buffer
		logger := New(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, zapcore.AddSync(&buf))
		logger.Error("to the file")
		require.NoError(t, logger.Sync())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"to the file"`)
		assert.Contains(t, buf.String(), "to the file")
	})
}

func TestInitialize(t *testing.T) {
	t.Cleanup(ResetForTest)

	t.Run("should only initialize once", func(t *testing.T) {
		ResetForTest()
		var buf bytes.Buffer
		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "first"}, zapcore.AddSync(&buf))
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "second"}, zapcore.AddSync(&buf))

		assert.Same(t, first, GetLogger())
		GetLogger().Info("test")
		Sync()
		assert.Contains(t, buf.String(), `"logger":"first"`)
		assert.NotContains(t, buf.String(), "second")
	})

	t.Run("should return a fallback before initialization", func(t *testing.T) {
		ResetForTest()
		assert.NotNil(t, GetLogger())
		assert.Nil(t, globalLogger.Load())
		Sync()
	})
}
