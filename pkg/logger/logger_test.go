package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(t *testing.T, level Level) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	log, err := NewWriterLogger(&Config{
		Level:            level,
		Format:           JSONFormat,
		Output:           StderrOutput,
		DisableTimestamp: true,
	}, &buf)
	require.NoError(t, err)
	return log, &buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogger_FieldsArePropagated(t *testing.T) {
	log, buf := newJSONLogger(t, InfoLevel)

	log.WithComponent("engine").
		WithField("batch_id", "b-1").
		WithFields(Fields{"invoices": 3}).
		WithError(errors.New("boom")).
		Info("processed")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "b-1", lines[0]["batch_id"])
	assert.Equal(t, float64(3), lines[0]["invoices"])
	assert.Equal(t, "boom", lines[0]["error"])
	assert.Equal(t, "processed", lines[0]["msg"])
}

func TestLogger_DerivedLoggersAreIndependent(t *testing.T) {
	log, buf := newJSONLogger(t, InfoLevel)

	a := log.WithField("side", "a")
	b := log.WithField("side", "b")
	a.Info("one")
	b.Info("two")
	log.Info("three")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "a", lines[0]["side"])
	assert.Equal(t, "b", lines[1]["side"])
	assert.NotContains(t, lines[2], "side")
}

func TestLogger_LevelFiltering(t *testing.T) {
	log, buf := newJSONLogger(t, WarnLevel)

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warning", lines[0]["level"])
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"default", *DefaultConfig(), false},
		{"debug", *DebugConfig(), false},
		{"bad level", Config{Level: "loud", Format: TextFormat, Output: StderrOutput}, true},
		{"bad format", Config{Level: InfoLevel, Format: "xml", Output: StderrOutput}, true},
		{"bad output", Config{Level: InfoLevel, Format: TextFormat, Output: "syslog"}, true},
		{"file without path", Config{Level: InfoLevel, Format: TextFormat, Output: FileOutput}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProgressTracker(t *testing.T) {
	log, buf := newJSONLogger(t, InfoLevel)

	tracker := NewProgressTracker(ProgressConfig{Operation: "parse", Total: 2, Logger: log})
	tracker.Increment()
	tracker.Fail()
	tracker.Complete()

	stats := tracker.GetStats()
	assert.Equal(t, int64(2), stats.Current)
	assert.Equal(t, int64(1), stats.Failed)
	assert.InDelta(t, 100.0, stats.Percentage, 1e-9)
	assert.Contains(t, stats.String(), "parse: 2/2")

	lines := decodeLines(t, buf)
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Equal(t, "Operation completed with failures", last["msg"])
	assert.Equal(t, "progress", last["component"])
}
