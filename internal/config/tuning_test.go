package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadTuningConfig_PartialOverrides(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.json", `{"iterations": 20, "k_value": 2.5}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 20, cfg.GetIterations())
	assert.Equal(t, 2.5, cfg.GetKValue())
	// Omitted fields fall back to defaults.
	assert.Equal(t, DefaultStep, cfg.GetStep())
	assert.Equal(t, DefaultMaxV, cfg.GetMaxV())
	assert.Equal(t, DefaultGridCount, cfg.GetGridCount())
	assert.Empty(t, cfg.GetDBPath())
}

func TestLoadTuningConfig_OutputPaths(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, "tuning.json",
		`{"db_path": "run.db", "report_path": "report.html", "heatmap_path": "dem.png"}`)
	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "run.db", cfg.GetDBPath())
	assert.Equal(t, "report.html", cfg.GetReportPath())
	assert.Equal(t, "dem.png", cfg.GetHeatmapPath())
}

func TestLoadTuningConfig_Rejections(t *testing.T) {
	t.Parallel()

	t.Run("wrong extension", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.yaml", `{}`)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, "tuning.json", `{"iterations": `)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})
}

func TestTuningConfig_NilReceiverUsesDefaults(t *testing.T) {
	t.Parallel()

	var cfg *TuningConfig
	assert.Equal(t, DefaultIterations, cfg.GetIterations())
	assert.Equal(t, DefaultStep, cfg.GetStep())
	assert.Equal(t, DefaultKValue, cfg.GetKValue())
}
