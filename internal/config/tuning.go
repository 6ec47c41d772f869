package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/snowdepth/internal/measure"
)

// TuningConfig holds the pipeline parameters that may be changed without a
// restart. Omitted fields fall back to the sensor defaults via the Get*
// methods, so partial files are safe.
type TuningConfig struct {
	ResolutionCM        *float64 `json:"resolution_cm,omitempty" yaml:"resolution_cm,omitempty"`
	MinDistanceCM       *float64 `json:"min_distance_cm,omitempty" yaml:"min_distance_cm,omitempty"`
	MaxDistanceCM       *float64 `json:"max_distance_cm,omitempty" yaml:"max_distance_cm,omitempty"`
	DefaultTemperatureC *float64 `json:"default_temperature_c,omitempty" yaml:"default_temperature_c,omitempty"`

	TemperatureTimeout *string `json:"temperature_timeout,omitempty" yaml:"temperature_timeout,omitempty"` // e.g. "2s"
	StoreTimeout       *string `json:"store_timeout,omitempty" yaml:"store_timeout,omitempty"`
}

const maxTuningFileSize = 1 * 1024 * 1024 // 1MB

// LoadTuningConfig reads a .json, .yaml or .yml tuning file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .json, .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxTuningFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxTuningFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &TuningConfig{}
	if ext == ".json" {
		err = json.Unmarshal(data, cfg)
	} else {
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", strings.TrimPrefix(ext, "."), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the values that are set.
func (c *TuningConfig) Validate() error {
	if c.ResolutionCM != nil && !(*c.ResolutionCM > 0) {
		return fmt.Errorf("resolution_cm must be positive, got %v", *c.ResolutionCM)
	}
	for name, v := range map[string]*float64{
		"min_distance_cm":       c.MinDistanceCM,
		"max_distance_cm":       c.MaxDistanceCM,
		"default_temperature_c": c.DefaultTemperatureC,
	} {
		if v != nil && (math.IsNaN(*v) || math.IsInf(*v, 0)) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	if minCM, maxCM := c.GetMinDistanceCM(), c.GetMaxDistanceCM(); minCM < 0 || minCM >= maxCM {
		return fmt.Errorf("distance bounds must satisfy 0 <= min < max, got [%v, %v]", minCM, maxCM)
	}
	if c.DefaultTemperatureC != nil && *c.DefaultTemperatureC < -measure.AbsoluteZeroC {
		return fmt.Errorf("default_temperature_c %v is below absolute zero", *c.DefaultTemperatureC)
	}
	if err := validateDuration("temperature_timeout", c.TemperatureTimeout); err != nil {
		return err
	}
	return validateDuration("store_timeout", c.StoreTimeout)
}

func validateDuration(name string, s *string) error {
	if s == nil || *s == "" {
		return nil
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", name, d)
	}
	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// GetResolutionCM returns resolution_cm or the sensor's 0.3 cm step.
func (c *TuningConfig) GetResolutionCM() float64 {
	if c.ResolutionCM == nil {
		return measure.DefaultResolutionCM
	}
	return *c.ResolutionCM
}

func (c *TuningConfig) GetMinDistanceCM() float64 {
	if c.MinDistanceCM == nil {
		return measure.DefaultMinDistanceCM
	}
	return *c.MinDistanceCM
}

func (c *TuningConfig) GetMaxDistanceCM() float64 {
	if c.MaxDistanceCM == nil {
		return measure.DefaultMaxDistanceCM
	}
	return *c.MaxDistanceCM
}

func (c *TuningConfig) GetDefaultTemperatureC() float64 {
	if c.DefaultTemperatureC == nil {
		return measure.DefaultTemperatureC
	}
	return *c.DefaultTemperatureC
}

// GetTemperatureTimeout returns temperature_timeout, 2s when unset or not
// positive.
func (c *TuningConfig) GetTemperatureTimeout() time.Duration {
	return parseDurationOr(c.TemperatureTimeout, measure.DefaultTuning().TemperatureTimeout)
}

// GetStoreTimeout returns store_timeout, 5s when unset or not positive.
func (c *TuningConfig) GetStoreTimeout() time.Duration {
	return parseDurationOr(c.StoreTimeout, measure.DefaultTuning().StoreTimeout)
}

// ToTuning resolves every field into the pipeline's tuning.
func (c *TuningConfig) ToTuning() measure.Tuning {
	return measure.Tuning{
		ResolutionCM:        c.GetResolutionCM(),
		Bounds:              measure.Bounds{MinCM: c.GetMinDistanceCM(), MaxCM: c.GetMaxDistanceCM()},
		DefaultTemperatureC: c.GetDefaultTemperatureC(),
		TemperatureTimeout:  c.GetTemperatureTimeout(),
		StoreTimeout:        c.GetStoreTimeout(),
	}
}
