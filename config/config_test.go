package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoad(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://example.test/api"
	cfg.Autosave.IntervalMs = 1500

	require.NoError(t, cfg.Save(root))
	assert.True(t, Exists(root))

	loaded, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "http://example.test/api", loaded.API.BaseURL)
	assert.Equal(t, 1500, loaded.Autosave.IntervalMs)
	assert.Equal(t, GetStorePath(root), loaded.Server.Store.GOBPath)
}

func TestLoadAppliesDefaults(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(GetConfigDir(root), 0755))
	partial := "api:\n  base_url: http://other/api\nserver:\n  store:\n    backend: redis\n"
	require.NoError(t, os.WriteFile(GetConfigPath(root), []byte(partial), 0600))

	cfg, err := Load(root)
	require.NoError(t, err)

	defaults := DefaultConfig()
	assert.Equal(t, "http://other/api", cfg.API.BaseURL)
	assert.Equal(t, defaults.Autosave, cfg.Autosave)
	assert.Equal(t, defaults.Log, cfg.Log)
	assert.Equal(t, "flowpad", cfg.Server.Store.Redis.Prefix)
	assert.Empty(t, cfg.Server.Store.GOBPath)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(GetConfigDir(root), 0755))
	require.NoError(t, os.WriteFile(GetConfigPath(root), []byte("api: [unterminated"), 0600))

	_, err := Load(root)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FLOWPAD_API_URL", "http://env/api")
	t.Setenv("FLOWPAD_AUTOSAVE_INTERVAL_MS", "250")
	t.Setenv("FLOWPAD_STORE_BACKEND", "postgres")
	t.Setenv("FLOWPAD_POSTGRES_DSN", "postgres://localhost/flowpad")
	t.Setenv("FLOWPAD_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "http://env/api", cfg.API.BaseURL)
	assert.Equal(t, 250, cfg.Autosave.IntervalMs)
	assert.Equal(t, "postgres", cfg.Server.Store.Backend)
	assert.Equal(t, "postgres://localhost/flowpad", cfg.Server.Store.Postgres.DSN)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, DefaultConfig().API.TimeoutMs, cfg.API.TimeoutMs)
}

func TestApplyEnvRejectsBadNumber(t *testing.T) {
	t.Setenv("FLOWPAD_API_TIMEOUT_MS", "soon")
	assert.Error(t, DefaultConfig().ApplyEnv())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(dir), "missing .env is not an error")

	t.Setenv("FLOWPAD_LISTEN", "")
	require.NoError(t, os.Unsetenv("FLOWPAD_LISTEN"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFileName), []byte("FLOWPAD_LISTEN=0.0.0.0:9999\n"), 0600))
	require.NoError(t, LoadDotEnv(dir))
	assert.Equal(t, "0.0.0.0:9999", os.Getenv("FLOWPAD_LISTEN"))
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, DefaultConfig().Save(root))
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	t.Chdir(nested)

	found, err := FindProjectRoot()
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(root)
	require.NoError(t, err)
	assert.Equal(t, want, found)
}

func TestFindProjectRootMissing(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := FindProjectRoot()
	// A parent of the temp dir could in theory hold a project; only assert the
	// sentinel when nothing was found.
	if err != nil {
		assert.ErrorIs(t, err, ErrNoProject)
	}
}

func TestEnsureGitignoreEntry(t *testing.T) {
	t.Run("creates gitignore if missing", func(t *testing.T) {
		dir := t.TempDir()
		EnsureGitignoreEntry(dir, ".flowpad/")

		data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
		require.NoError(t, err)
		assert.Contains(t, string(data), ".flowpad/")
	})

	t.Run("appends once to existing gitignore", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("node_modules"), 0644))

		EnsureGitignoreEntry(dir, ".flowpad/")
		EnsureGitignoreEntry(dir, ".flowpad/")

		data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(string(data), ".flowpad/"))
		assert.Contains(t, string(data), "node_modules\n")
	})
}
