package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/polishequity/analytics/pipeline"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, pipeline.DefaultConfig(), cfg.Training)
	assert.Equal(t, filepath.Join("Data", "initial_labeling_data.csv"), cfg.Paths.Data)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
paths:
  data: input.csv
training:
  num_iterations: 10
  learning_rate: 0.2
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "input.csv", cfg.Paths.Data)
	assert.Equal(t, 10, cfg.Training.NumIterations)
	assert.Equal(t, 0.2, cfg.Training.LearningRate)
	assert.Equal(t, 50, cfg.Training.NumLeaves)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, DefaultConfig().Paths.Model, cfg.Paths.Model)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FINHEALTH_DATA", "env.csv")
	t.Setenv("FINHEALTH_SEED", "7")
	t.Setenv("FINHEALTH_IMPORTANCE_PLOT", "charts/importance.png")
	t.Setenv("FINHEALTH_LOSS_PLOT", "charts/loss.png")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "env.csv", cfg.Paths.Data)
	assert.Equal(t, "charts/importance.png", cfg.Paths.ImportancePlot)
	assert.Equal(t, "charts/loss.png", cfg.Paths.LossPlot)
	assert.Equal(t, uint64(7), cfg.Split.Seed)
	assert.Equal(t, uint64(7), cfg.Training.Seed)
}

func TestEnvOverrideInvalidSeed(t *testing.T) {
	t.Setenv("FINHEALTH_SEED", "-1")
	_, err := Load("")
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"test fraction of one", func(c *Config) { c.Split.TestFraction = 1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"missing data path", func(c *Config) { c.Paths.Data = "" }},
		{"invalid training config", func(c *Config) { c.Training.NumLeaves = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			var valErr *errors.ValidationError
			assert.True(t, errors.As(cfg.Validate(), &valErr))
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Training.NumIterations = 33
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("training: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}
