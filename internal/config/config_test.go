package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Acquire.Workers, cfg.Acquire.Workers)
}

func TestEnvOverrideWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"acquire":{"workers":2}}`), 0o644))

	t.Setenv("DC_WORKERS", "9")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Acquire.Workers)
}

func TestOfflinePresetDisablesFetch(t *testing.T) {
	cfg, err := Preset("offline")
	require.NoError(t, err)
	assert.True(t, cfg.Classifier.NoFetch)
	assert.False(t, cfg.Acquire.Execute)
}

func TestUnknownPresetErrors(t *testing.T) {
	_, err := Preset("nonsense")
	assert.Error(t, err)
}
