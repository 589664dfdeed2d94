// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/promptsmith/internal/config"
)

// captureOutput is a helper function to capture stdout for the duration of a
// test. It returns a function to be called with defer to restore the
// original stdout.
func captureOutput(t *testing.T) (*bytes.Buffer, func()) {
	t.Helper()
	originalStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		_, _ = buf.ReadFrom(r)
		close(done)
	}()

	cleanup := func() {
		w.Close()
		<-done
		os.Stdout = originalStdout
	}
	return &buf, cleanup
}

// resetGlobalLogger is critical for ensuring test isolation, as the logger
// is a global singleton. We must reset it before each test.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

func TestInitializeLogger(t *testing.T) {

	t.Run("should initialize console logger with colorized levels", func(t *testing.T) {
		resetGlobalLogger()
		buf, cleanup := captureOutput(t)

		cfg := config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "TestService",
		}
		InitializeLogger(cfg)
		logger := GetLogger()
		logger.Info("This is a test message.")
		Sync()
		cleanup()

		output := buf.String()
		assert.Contains(t, output, "INFO", "Output should contain the log level")
		assert.Contains(t, output, "This is a test message.", "Output should contain the message")
		assert.Contains(t, output, colorGreen, "Info level should be colorized green")
		assert.Contains(t, output, colorReset, "Output should contain the reset color code")
	})

	t.Run("should produce valid JSON in json format", func(t *testing.T) {
		resetGlobalLogger()
		buf, cleanup := captureOutput(t)

		cfg := config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "TestService",
		}
		InitializeLogger(cfg)
		GetLogger().Info("structured message")
		Sync()
		cleanup()

		line := strings.TrimSpace(buf.String())
		require.NotEmpty(t, line)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry), "JSON format should emit parseable lines")
		assert.Equal(t, "structured message", entry["msg"])
	})

	t.Run("should fall back to info level on invalid level string", func(t *testing.T) {
		resetGlobalLogger()
		buf, cleanup := captureOutput(t)

		InitializeLogger(config.LoggerConfig{Level: "not-a-level", Format: "console"})
		GetLogger().Debug("hidden")
		GetLogger().Info("visible")
		Sync()
		cleanup()

		output := buf.String()
		assert.NotContains(t, output, "hidden", "Debug should be filtered at the fallback info level")
		assert.Contains(t, output, "visible")
	})

	t.Run("should write rotated JSON file when log_file is set", func(t *testing.T) {
		resetGlobalLogger()
		buf, cleanup := captureOutput(t)

		logPath := filepath.Join(t.TempDir(), "promptsmith.log")
		InitializeLogger(config.LoggerConfig{
			Level:   "info",
			Format:  "console",
			LogFile: logPath,
			MaxSize: 1,
		})
		GetLogger().Info("to file")
		Sync()
		cleanup()
		_ = buf

		data, err := os.ReadFile(logPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("GetLogger should return a usable fallback before initialization", func(t *testing.T) {
		resetGlobalLogger()
		logger := GetLogger()
		require.NotNil(t, logger)
		// Must not panic.
		logger.Info("fallback logger works")
	})
}
