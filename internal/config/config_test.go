package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestGetConfigPath_ReturnsLocalConfig_When_FileExists(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	require.NoError(t, os.WriteFile(filepath.Join(tempDir, FileName), []byte("runs: 2\n"), 0o600))

	assert.Equal(t, FileName, getConfigPath())
}

func TestGetConfigPath_UsesXDGPath_When_LocalMissing(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)

	xdgRoot := filepath.Join(tempDir, "xdg")
	configHome := filepath.Join(xdgRoot, "sweep")
	require.NoError(t, os.MkdirAll(configHome, 0o755))
	configPath := filepath.Join(configHome, FileName)
	require.NoError(t, os.WriteFile(configPath, []byte("runs: 3\n"), 0o600))

	t.Setenv("XDG_CONFIG_HOME", xdgRoot)
	t.Setenv("HOME", filepath.Join(tempDir, "home"))

	assert.Equal(t, configPath, getConfigPath())
}

func TestGetConfigPath_ReturnsEmpty_When_NoConfigAvailable(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tempDir, "home"))

	assert.Empty(t, getConfigPath())
}

func TestLoadConfig_ReturnsDefaults_When_NoFileFound(t *testing.T) {
	tempDir := t.TempDir()
	chdir(t, tempDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tempDir, "xdg"))
	t.Setenv("HOME", filepath.Join(tempDir, "home"))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadConfig_MergesYAMLOntoDefaults_When_ExplicitPathGiven(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	body := `exec: ./build/QST
methods: [qsort_c, std_sort]
runs: 5
jobs: CPU
max_batch: 1000
partitions: [teton]
submit_wait: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./build/QST", cfg.Exec)
	assert.Equal(t, []string{"qsort_c", "std_sort"}, cfg.Methods)
	assert.Equal(t, 5, cfg.Runs)
	assert.Equal(t, "CPU", cfg.Jobs)
	assert.Equal(t, 1000, cfg.MaxBatch)
	assert.Equal(t, []string{"teton"}, cfg.Partitions)
	assert.Equal(t, 5*time.Second, cfg.SubmitWait)
	assert.Equal(t, DefaultValgrind, cfg.Valgrind, "unset keys keep their default")
	assert.Equal(t, []string{".gz"}, cfg.InputExts)
	assert.Equal(t, path, cfg.Path)
}

func TestLoadConfig_ReturnsError_When_ExplicitPathMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_ReturnsError_When_YAMLMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runs: [oops\n"), 0o600))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestLoadConfig_ReturnsInvalidConfig_When_RunsNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("runs: -1\n"), 0o600))

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrInvalidConfig)
}
