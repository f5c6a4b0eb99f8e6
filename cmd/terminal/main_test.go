package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withConfigFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "terminal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	prev := configPath
	configPath = path
	t.Cleanup(func() { configPath = prev })
}

func TestLoadConfig_Valid(t *testing.T) {
	withConfigFile(t, "backend_url: http://backend:4000/api\nterminal_id: caja-1\n")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://backend:4000/api", cfg.BackendURL)
	assert.Equal(t, "caja-1", cfg.TerminalID)
}

func TestLoadConfig_InvalidReportedOnce(t *testing.T) {
	withConfigFile(t, "backend_url: not-a-url\n")

	_, err := loadConfig()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "invalid configuration: "))
	assert.Equal(t, 1, strings.Count(err.Error(), "backend_url"))
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	prev := configPath
	configPath = "absent.yaml"
	t.Cleanup(func() { configPath = prev })

	_, err := loadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
