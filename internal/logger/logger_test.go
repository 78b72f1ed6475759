package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/newthinker/stock-mcp/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew_Development(t *testing.T) {
	log, err := New(true)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}

	// Should not panic
	log.Info("test message")
}

func TestNew_Production(t *testing.T) {
	log, err := New(false)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestMust(t *testing.T) {
	// Should not panic
	log := Must(true)
	if log == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestBuild_Levels(t *testing.T) {
	_, level, err := Build(Options{})
	require.NoError(t, err)
	assert.Equal(t, zap.InfoLevel, level.Level())

	_, level, err = Build(Options{Development: true})
	require.NoError(t, err)
	assert.Equal(t, zap.DebugLevel, level.Level())

	_, level, err = Build(Options{Development: true, Level: "warn"})
	require.NoError(t, err)
	assert.Equal(t, zap.WarnLevel, level.Level())

	_, _, err = Build(Options{Level: "loud"})
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestBuild_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stockmcp.log")

	log, level, err := Build(Options{File: path, MaxSizeMB: 1})
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("kept", zap.String("dataset", "stock_zh_a_spot_em"))

	level.SetLevel(zap.DebugLevel)
	log.Debug("now visible")
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"dataset":"stock_zh_a_spot_em"`)
	assert.Contains(t, string(data), "now visible")
}
