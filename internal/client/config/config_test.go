package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, filepath.Join(dir, "state"), cfg.StateDir)
	assert.False(t, cfg.Verbose)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := "server_url: https://blog.example/\nverbose: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "https://blog.example", cfg.ServerURL)
	assert.True(t, cfg.Verbose)

	t.Setenv("SCRIBE_SERVER_URL", "https://staging.example")
	t.Setenv("SCRIBE_STATE_DIR", "/tmp/scribe-state")
	cfg, err = Load(Options{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example", cfg.ServerURL)
	assert.Equal(t, "/tmp/scribe-state", cfg.StateDir)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	_, err := Load(Options{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoad_RejectsRelativeServerURL(t *testing.T) {
	t.Setenv("SCRIBE_SERVER_URL", "localhost:8080/api")
	_, err := Load(Options{Dir: t.TempDir()})
	assert.ErrorContains(t, err, "server_url")
}
