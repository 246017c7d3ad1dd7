package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fentz26/skein/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "skein.log")
	logger, closer, err := New(config.LoggerConfig{File: path, Level: "debug", Format: "json"})
	require.NoError(t, err)

	logger.WithField("package", "bash").Debug("importing")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := string(data)
	assert.True(t, strings.Contains(line, `"package":"bash"`), line)
	assert.True(t, strings.Contains(line, `"msg":"importing"`), line)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, _, err := New(config.LoggerConfig{Level: "loud"})
	require.Error(t, err)
}

func TestNewDefaultsToInfo(t *testing.T) {
	logger, closer, err := New(config.LoggerConfig{})
	require.NoError(t, err)
	defer closer.Close()
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}
