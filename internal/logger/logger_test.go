package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "shellbox.log")

	l, err := New(Config{Level: "info", File: path})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	log.Info().Str("key", "value").Msg("test entry")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test entry")
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	l, err := New(Config{Level: "nope", Console: true})
	require.NoError(t, err)
	defer func() { _ = l.Close() }()

	assert.Equal(t, zerolog.InfoLevel, l.logger.GetLevel())
}

func TestClose_WithoutFile(t *testing.T) {
	l, err := New(Config{Level: "debug", Console: true})
	require.NoError(t, err)

	assert.NoError(t, l.Close())
}
