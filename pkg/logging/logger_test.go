package logging

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("test-component")
	require.NotNil(t, logger)

	if err != nil {
		// Fallback mode still yields a usable logger.
		assert.Empty(t, logger.LogPath())
		return
	}

	defer logger.Close()
	assert.NotEmpty(t, logger.LogPath())
	assert.NotEmpty(t, logger.RunID())
}

func TestLoggerWritesAllLevels(t *testing.T) {
	logger, err := NewLogger("levels")
	require.NotNil(t, logger)
	if err != nil {
		t.Skip("file logging unavailable in this environment")
	}
	defer logger.Close()

	logger.Debugf("debug %d", 1)
	logger.Infof("info %s", "message")
	logger.Warnf("warn")
	logger.Errorf("error: %v", os.ErrNotExist)

	data, err := os.ReadFile(logger.LogPath())
	require.NoError(t, err)

	content := string(data)
	assert.Contains(t, content, "[DEBUG] debug 1")
	assert.Contains(t, content, "[INFO] info message")
	assert.Contains(t, content, "[WARN] warn")
	assert.Contains(t, content, "[ERROR] error:")
	assert.Contains(t, content, "[levels]")
}

func TestRunIDStable(t *testing.T) {
	a, _ := NewLogger("a")
	b, _ := NewLogger("b")
	require.NotNil(t, a)
	require.NotNil(t, b)
	defer a.Close()
	defer b.Close()

	assert.Equal(t, a.RunID(), b.RunID())
	if a.LogPath() != "" {
		assert.True(t, strings.HasSuffix(a.LogPath(), "-quotelane.log"))
	}
}

func TestLoggerCloseIdempotent(t *testing.T) {
	logger, err := NewLogger("close")
	require.NotNil(t, logger)
	if err != nil {
		t.Skip("file logging unavailable in this environment")
	}

	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}
