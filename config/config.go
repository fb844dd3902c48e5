// Package config loads the run configuration from YAML with environment
// overrides.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/polishequity/analytics/pipeline"
	"github.com/polishequity/analytics/pkg/errors"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config is the full run configuration.
type Config struct {
	Paths    PathsConfig     `yaml:"paths"`
	Split    SplitConfig     `yaml:"split"`
	Training pipeline.Config `yaml:"training"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// PathsConfig locates inputs and outputs. Empty optional paths disable the
// corresponding output.
type PathsConfig struct {
	Data           string `yaml:"data" validate:"required"`
	Model          string `yaml:"model" validate:"required"`
	Stacking       string `yaml:"stacking" validate:"required"`
	TrackingDB     string `yaml:"tracking_db"`
	MetricsFile    string `yaml:"metrics_file"`
	ImportancePlot string `yaml:"importance_plot"`
	LossPlot       string `yaml:"loss_plot"`
}

// SplitConfig controls the train/test partition.
type SplitConfig struct {
	TestFraction float64 `yaml:"test_fraction" validate:"gt=0,lt=1"`
	Seed         uint64  `yaml:"seed"`
}

// LoggingConfig sets the log level.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Data:     filepath.Join("Data", "initial_labeling_data.csv"),
			Model:    filepath.Join("..", "PolishEquity.Analytics.Stacking", "Models", "LightGBM_model.zip"),
			Stacking: filepath.Join("..", "PolishEquity.Analytics.Stacking", "Data", "stacking_input.csv"),
		},
		Split: SplitConfig{
			TestFraction: 0.2,
			Seed:         42,
		},
		Training: pipeline.DefaultConfig(),
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrapf(err, "read config %s", path)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(err, "parse config %s", path)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create config directory for %s", path)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	return errors.WithStack(os.WriteFile(path, data, 0o644))
}

// applyEnvOverrides applies FINHEALTH_* variables.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("FINHEALTH_DATA"); v != "" {
		c.Paths.Data = v
	}
	if v := os.Getenv("FINHEALTH_MODEL"); v != "" {
		c.Paths.Model = v
	}
	if v := os.Getenv("FINHEALTH_STACKING"); v != "" {
		c.Paths.Stacking = v
	}
	if v := os.Getenv("FINHEALTH_TRACKING_DB"); v != "" {
		c.Paths.TrackingDB = v
	}
	if v := os.Getenv("FINHEALTH_METRICS_FILE"); v != "" {
		c.Paths.MetricsFile = v
	}
	if v := os.Getenv("FINHEALTH_IMPORTANCE_PLOT"); v != "" {
		c.Paths.ImportancePlot = v
	}
	if v := os.Getenv("FINHEALTH_LOSS_PLOT"); v != "" {
		c.Paths.LossPlot = v
	}
	if v := os.Getenv("FINHEALTH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("FINHEALTH_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return errors.NewValidationError("FINHEALTH_SEED", "must be an unsigned integer", v)
		}
		c.Split.Seed = seed
		c.Training.Seed = seed
	}
	return nil
}

// Validate checks paths, split and logging settings and the training
// hyperparameters.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return errors.NewValidationError(fe.Namespace(), "failed '"+fe.Tag()+"' constraint", fe.Value())
		}
		return errors.Wrap(err, "validate config")
	}
	return nil
}
