package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/snowdepth/internal/measure"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEmptyTuningConfigUsesDefaults(t *testing.T) {
	cfg := &TuningConfig{}
	require.NoError(t, cfg.Validate())

	if diff := cmp.Diff(measure.DefaultTuning(), cfg.ToTuning()); diff != "" {
		t.Errorf("ToTuning() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTuningConfig_JSON(t *testing.T) {
	path := writeFile(t, "tuning.json", `{
  "resolution_cm": 0.5,
  "min_distance_cm": 5,
  "max_distance_cm": 250,
  "default_temperature_c": -5,
  "temperature_timeout": "750ms",
  "store_timeout": "3s"
}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	want := measure.Tuning{
		ResolutionCM:        0.5,
		Bounds:              measure.Bounds{MinCM: 5, MaxCM: 250},
		DefaultTemperatureC: -5,
		TemperatureTimeout:  750 * time.Millisecond,
		StoreTimeout:        3 * time.Second,
	}
	if diff := cmp.Diff(want, cfg.ToTuning()); diff != "" {
		t.Errorf("ToTuning() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTuningConfig_YAMLPartial(t *testing.T) {
	for _, ext := range []string{".yaml", ".yml"} {
		t.Run(ext, func(t *testing.T) {
			path := writeFile(t, "tuning"+ext, "max_distance_cm: 180\nstore_timeout: 1s\n")

			cfg, err := LoadTuningConfig(path)
			require.NoError(t, err)

			tuning := cfg.ToTuning()
			assert.Equal(t, 180.0, tuning.Bounds.MaxCM)
			assert.Equal(t, measure.DefaultMinDistanceCM, tuning.Bounds.MinCM)
			assert.Equal(t, measure.DefaultResolutionCM, tuning.ResolutionCM)
			assert.Equal(t, time.Second, tuning.StoreTimeout)
			assert.Equal(t, 2*time.Second, tuning.TemperatureTimeout)
		})
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "tuning.toml", "resolution_cm = 1", "extension"},
		{"bad json", "tuning.json", "{", "failed to parse config json"},
		{"bad yaml", "tuning.yaml", "resolution_cm: [", "failed to parse config yaml"},
		{"zero resolution", "tuning.json", `{"resolution_cm": 0}`, "resolution_cm"},
		{"inverted bounds", "tuning.json", `{"min_distance_cm": 300}`, "distance bounds"},
		{"negative min", "tuning.json", `{"min_distance_cm": -1}`, "distance bounds"},
		{"below absolute zero", "tuning.json", `{"default_temperature_c": -300}`, "absolute zero"},
		{"bad duration", "tuning.json", `{"store_timeout": "soon"}`, "store_timeout"},
		{"negative duration", "tuning.json", `{"temperature_timeout": "-1s"}`, "temperature_timeout"},
		{"zero temperature timeout", "tuning.json", `{"temperature_timeout": "0s"}`, "temperature_timeout"},
		{"zero store timeout", "tuning.yaml", "store_timeout: 0s\n", "store_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			_, err := LoadTuningConfig(path)
			require.Error(t, err)
			assert.Contains(t, strings.ToLower(err.Error()), strings.ToLower(tt.wantErr))
		})
	}
}

func TestLoadTuningConfig_MissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.json")
	require.NoError(t, os.WriteFile(path, make([]byte, maxTuningFileSize+1), 0o644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}

func TestGetTimeouts_NonPositiveFallsBack(t *testing.T) {
	zero, negative := "0s", "-3s"
	cfg := &TuningConfig{TemperatureTimeout: &zero, StoreTimeout: &negative}

	defaults := measure.DefaultTuning()
	assert.Equal(t, defaults.TemperatureTimeout, cfg.GetTemperatureTimeout())
	assert.Equal(t, defaults.StoreTimeout, cfg.GetStoreTimeout())
}
