// Package config loads optional JSON tuning files for the ground filter.
// Fields are pointers so a partial file only overrides what it names; the
// Get* methods supply defaults for everything else. Command-line flags that
// were set explicitly take precedence over file values.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Defaults for the run parameters, matching the control panel's slider
// positions.
const (
	DefaultIterations = 10
	DefaultStep       = 5.0
	DefaultKValue     = 4.0
	DefaultMaxV       = 1.0
	DefaultGridCount  = 4
)

// TuningConfig is the root configuration for a filtering run.
type TuningConfig struct {
	Iterations *int     `json:"iterations,omitempty"`
	Step       *float64 `json:"step,omitempty"`
	KValue     *float64 `json:"k_value,omitempty"`
	MaxV       *float64 `json:"max_v,omitempty"`
	GridCount  *int     `json:"grid_count,omitempty"`

	// Optional output collaborators.
	DBPath      *string `json:"db_path,omitempty"`
	ReportPath  *string `json:"report_path,omitempty"`
	HeatmapPath *string `json:"heatmap_path,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must
// carry a .json extension and stay under 1MB; fields omitted from the JSON
// fall back to defaults through the Get* methods.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// GetIterations returns the configured iteration count or the default.
func (c *TuningConfig) GetIterations() int {
	if c != nil && c.Iterations != nil {
		return *c.Iterations
	}
	return DefaultIterations
}

// GetStep returns the configured cell size in metres or the default.
func (c *TuningConfig) GetStep() float64 {
	if c != nil && c.Step != nil {
		return *c.Step
	}
	return DefaultStep
}

// GetKValue returns the configured median multiplier or the default.
func (c *TuningConfig) GetKValue() float64 {
	if c != nil && c.KValue != nil {
		return *c.KValue
	}
	return DefaultKValue
}

// GetMaxV returns the configured absolute threshold or the default.
func (c *TuningConfig) GetMaxV() float64 {
	if c != nil && c.MaxV != nil {
		return *c.MaxV
	}
	return DefaultMaxV
}

// GetGridCount returns the configured number of phase-shifted grids or the default.
func (c *TuningConfig) GetGridCount() int {
	if c != nil && c.GridCount != nil {
		return *c.GridCount
	}
	return DefaultGridCount
}

// GetDBPath returns the configured run database path, empty when disabled.
func (c *TuningConfig) GetDBPath() string {
	if c != nil && c.DBPath != nil {
		return *c.DBPath
	}
	return ""
}

// GetReportPath returns the configured convergence report path, empty when disabled.
func (c *TuningConfig) GetReportPath() string {
	if c != nil && c.ReportPath != nil {
		return *c.ReportPath
	}
	return ""
}

// GetHeatmapPath returns the configured DEM heatmap path, empty when disabled.
func (c *TuningConfig) GetHeatmapPath() string {
	if c != nil && c.HeatmapPath != nil {
		return *c.HeatmapPath
	}
	return ""
}
