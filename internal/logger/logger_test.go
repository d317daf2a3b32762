package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(LogConfig{Level: "chatty", Output: "stdout"})
	assert.Error(t, err)
}

func TestNewWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	l, err := New(LogConfig{Level: "debug", Format: "json", Output: path})
	require.NoError(t, err)

	l.Info().Str("order", "7").Msg("hello")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"order":"7"`)
	assert.Contains(t, string(data), `"message":"hello"`)
}
