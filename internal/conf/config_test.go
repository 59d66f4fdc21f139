package conf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "config.yaml")

	settings := validSettings()
	settings.Main.Name = "site-42"
	settings.Classifier.ModelPath = "model/defects.tflite"

	require.NoError(t, SaveYAMLConfig(configPath, settings))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))

	assert.Equal(t, "site-42", loaded.Main.Name)
	assert.Equal(t, "model/defects.tflite", loaded.Classifier.ModelPath)
	assert.Equal(t, "5000", loaded.WebServer.Port)
	assert.Equal(t, 16000, loaded.Capture.Audio.SampleRate)
}

func TestSaveYAMLConfigSkipsRuntimeFields(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "config.yaml")

	settings := validSettings()
	settings.Version = "1.2.3"
	settings.BuildDate = "2026-01-01"

	require.NoError(t, SaveYAMLConfig(configPath, settings))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "1.2.3")
	assert.NotContains(t, string(data), "2026-01-01")
}

func TestGetDefaultConfigPaths(t *testing.T) {
	t.Parallel()

	paths, err := GetDefaultConfigPaths()
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	assert.Equal(t, ".", paths[0])
}
