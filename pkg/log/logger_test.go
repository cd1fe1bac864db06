package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("test error"), StageKey, "train")

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0)) // JSON numbers are float64
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "test error"))
	assert.True(t, testLogger.ContainsField(StageKey, "train"))
	assert.Len(t, testLogger.EntriesAt("WARN"), 1)
}

func TestTestLoggerWithAndLevel(t *testing.T) {
	base, _ := NewTestLogger(LevelWarn)
	child := base.With(RunIDKey, "run-1")

	child.Info("dropped")
	child.Warn("kept")

	entries, err := base.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
	assert.Equal(t, "run-1", entries[0][RunIDKey])
	assert.False(t, base.Enabled(context.Background(), LevelInfo))
	assert.True(t, base.Enabled(context.Background(), LevelError))
}

func TestTestLoggerConcurrentWrites(t *testing.T) {
	logger, _ := NewTestLogger(LevelInfo)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.With("worker", i).Info("done")
		}(i)
	}
	wg.Wait()

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 16)
}

func TestZerologLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewZerologLogger(&buf, LevelInfo)

	logger.Debug("hidden")
	logger.With(StageKey, "ingest").Info("stage started", SamplesKey, 100)
	logger.Error("stage failed", errors.NewIOError("read", "data/source.csv", os.ErrNotExist))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var info map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &info))
	assert.Equal(t, "info", info["level"])
	assert.Equal(t, "ingest", info[StageKey])
	assert.Equal(t, 100.0, info[SamplesKey])

	var failure map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failure))
	assert.Equal(t, "error", failure["level"])
	assert.Equal(t, "io", failure[ErrorKindKey])
	assert.Contains(t, failure[ErrAttrKey], "data/source.csv")
	detail, ok := failure["error.detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "IOError", detail["type"])
}

func TestSetupWritesLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, closeFn, err := Setup(Options{Level: LevelInfo, Dir: dir})
	require.NoError(t, err)
	logger.Info("hello file")
	require.NoError(t, closeFn())

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.True(t, strings.HasSuffix(files[0].Name(), ".log"))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteWarnings(t *testing.T) {
	logger, _ := NewTestLogger(LevelDebug)
	RouteWarnings(logger)
	defer errors.SetZerologWarnFunc(nil)

	errors.Warn(errors.NewFitFailedWarning("Decision Tree", nil, 0, errors.New("negative target")))

	warns := logger.EntriesAt("WARN")
	require.Len(t, warns, 1)
	assert.Equal(t, "FitFailedWarning", warns[0][ErrorTypeKey])
}
