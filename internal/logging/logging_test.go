package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "client.log")

	logger, err := New(Config{Level: "debug", Encoding: "json", Output: path})
	require.NoError(t, err)
	logger.Debug("refresh progress", zap.String("op", "progress"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"refresh progress"`)
	assert.Contains(t, string(data), `"level":"DEBUG"`)
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	logger, err := New(Config{Level: "loud", Encoding: "yaml", Output: path})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}
