package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Koji.Priority, cfg.Koji.Priority)
	assert.Equal(t, "local", cfg.Git.Backend)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skein.yaml")
	data := `
skein:
  install_root: /tmp/install
koji:
  poll_interval: 250ms
  latest_tag: goose-6
git:
  remote_url_template: "git@example.org:pkgs/%s.git"
logger:
  format: json
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/install", cfg.Skein.InstallRoot)
	assert.Equal(t, 250*time.Millisecond, cfg.Koji.PollInterval)
	assert.Equal(t, "goose-6", cfg.Koji.LatestTag)
	assert.Equal(t, "json", cfg.Logger.Format)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5, cfg.Koji.Priority)
	assert.Equal(t, "git@example.org:pkgs/bash.git", cfg.OriginURL("bash"))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no install root", func(c *Config) { c.Skein.InstallRoot = "" }},
		{"no base dir", func(c *Config) { c.Skein.BaseDir = "" }},
		{"remote template without verb", func(c *Config) { c.Git.RemoteURLTemplate = "file:///srv/git" }},
		{"build template without verb", func(c *Config) { c.Koji.BuildSourceTemplate = "git://x" }},
		{"zero poll interval", func(c *Config) { c.Koji.PollInterval = 0 }},
		{"bad log format", func(c *Config) { c.Logger.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid))
		})
	}

	require.NoError(t, DefaultConfig().Validate())
}

func TestTaskURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Koji.WebURL = "http://koji.example.org/koji/"
	assert.Equal(t, "http://koji.example.org/koji/taskinfo?taskID=42", cfg.TaskURL(42))
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".koji/client.crt"), ExpandHome("~/.koji/client.crt"))
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
}
