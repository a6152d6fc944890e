package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetToStderr restores the default sink so other tests are unaffected.
func resetToStderr(t *testing.T) {
	t.Cleanup(func() {
		Init(Config{Level: "INFO", Format: "text", Output: "stderr"})
	})
}

// ============================================================================
// Text Output Tests
// ============================================================================

func TestTextOutput(t *testing.T) {
	resetToStderr(t)

	t.Run("WritesLevelAndFields", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)

		Info("Read served", "path", "/tmp/x", "bytes", 42)

		line := buf.String()
		assert.Contains(t, line, "[INFO]")
		assert.Contains(t, line, "Read served")
		assert.Contains(t, line, "path=/tmp/x")
		assert.Contains(t, line, "bytes=42")
	})

	t.Run("LevelFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "WARN", "text", false)

		Debug("hidden")
		Info("hidden too")
		Warn("visible")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "visible")
	})

	t.Run("ErrorAlwaysLogged", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "ERROR", "text", false)

		Error("boom", "error", "disk on fire")

		assert.Contains(t, buf.String(), "boom")
	})

	t.Run("NoColorCodesWhenDisabled", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)

		Info("plain")

		assert.NotContains(t, buf.String(), "\x1b[")
	})
}

// ============================================================================
// JSON Output Tests
// ============================================================================

func TestJSONOutput(t *testing.T) {
	resetToStderr(t)

	t.Run("EmitsValidJSON", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "json", false)

		Info("session started", "session_id", "abc-123")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "session started", record["msg"])
		assert.Equal(t, "abc-123", record["session_id"])
		assert.Equal(t, "INFO", record["level"])
	})
}

// ============================================================================
// Level Handling Tests
// ============================================================================

func TestLevelHandling(t *testing.T) {
	resetToStderr(t)

	t.Run("SetLevelChangesFiltering", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)

		Debug("before")
		SetLevel("DEBUG")
		Debug("after")

		out := buf.String()
		assert.NotContains(t, out, "before")
		assert.Contains(t, out, "after")
	})

	t.Run("CaseInsensitiveLevels", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "warn", "text", false)

		Info("hidden")
		Warn("shown")

		out := buf.String()
		assert.NotContains(t, out, "hidden")
		assert.Contains(t, out, "shown")
	})

	t.Run("InvalidLevelIgnored", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)

		SetLevel("LOUD")
		Info("still works")

		assert.Contains(t, buf.String(), "still works")
	})

	t.Run("LevelNames", func(t *testing.T) {
		assert.Equal(t, "DEBUG", LevelDebug.String())
		assert.Equal(t, "ERROR", LevelError.String())
		assert.Equal(t, "UNKNOWN", Level(42).String())
	})
}

// ============================================================================
// Derived Logger Tests
// ============================================================================

func TestWith(t *testing.T) {
	resetToStderr(t)

	t.Run("PreBoundAttributes", func(t *testing.T) {
		var buf bytes.Buffer
		InitWithWriter(&buf, "INFO", "text", false)

		l := With("session_id", "xyz")
		l.Info("bound")

		line := buf.String()
		assert.Contains(t, line, "bound")
		assert.Contains(t, line, "session_id=xyz")
	})
}

// ============================================================================
// File Output Tests
// ============================================================================

func TestFileOutput(t *testing.T) {
	resetToStderr(t)

	t.Run("WritesToFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bridge.log")
		require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))

		Info("to file")

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "to file")
	})

	t.Run("UnwritablePathFails", func(t *testing.T) {
		err := Init(Config{Output: "/nonexistent-dir/bridge.log"})

		require.Error(t, err)
	})
}
