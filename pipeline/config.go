// Package pipeline trains, evaluates and persists the financial-health
// classifier: label encoding, feature preprocessing and a multiclass
// gradient boosted ensemble behind a single TrainedModel.
package pipeline

import (
	"github.com/go-playground/validator/v10"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/sklearn/lightgbm"
)

var validate = validator.New()

// Config holds the training hyperparameters. It is passed by value and
// never modified by Train.
type Config struct {
	NumLeaves     int     `yaml:"num_leaves" json:"num_leaves" validate:"min=2"`
	MinDataInLeaf int     `yaml:"min_data_in_leaf" json:"min_data_in_leaf" validate:"min=1"`
	LearningRate  float64 `yaml:"learning_rate" json:"learning_rate" validate:"gt=0"`
	NumIterations int     `yaml:"num_iterations" json:"num_iterations" validate:"min=1"`
	Seed          uint64  `yaml:"seed" json:"seed"`

	MaxBin              int     `yaml:"max_bin" json:"max_bin" validate:"min=2,max=65535"`
	Lambda              float64 `yaml:"lambda_l2" json:"lambda_l2" validate:"gte=0"`
	MinSumHessianInLeaf float64 `yaml:"min_sum_hessian_in_leaf" json:"min_sum_hessian_in_leaf" validate:"gte=0"`
	BaggingFraction     float64 `yaml:"bagging_fraction" json:"bagging_fraction" validate:"gt=0,lte=1"`
	BaggingFreq         int     `yaml:"bagging_freq" json:"bagging_freq" validate:"gte=0"`
	FeatureFraction     float64 `yaml:"feature_fraction" json:"feature_fraction" validate:"gt=0,lte=1"`
	NumThreads          int     `yaml:"num_threads" json:"num_threads" validate:"gte=0"`
	LogPeriod           int     `yaml:"log_period" json:"log_period" validate:"gte=0"`
}

// DefaultConfig returns the production hyperparameters.
func DefaultConfig() Config {
	return Config{
		NumLeaves:           50,
		MinDataInLeaf:       20,
		LearningRate:        0.01,
		NumIterations:       200,
		Seed:                42,
		MaxBin:              255,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1.0,
		FeatureFraction:     1.0,
	}
}

// Validate checks every field and reports the first violation as a
// ValidationError.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.NewValidationError(fe.Field(), "failed '"+fe.Tag()+"' constraint", fe.Value())
	}
	return errors.Wrap(err, "validate config")
}

// trainingParams maps the config onto booster parameters.
func (c Config) trainingParams(numClass int) lightgbm.TrainingParams {
	params := lightgbm.DefaultParams()
	params.NumIterations = c.NumIterations
	params.LearningRate = c.LearningRate
	params.NumLeaves = c.NumLeaves
	params.MinDataInLeaf = c.MinDataInLeaf
	params.MaxBin = c.MaxBin
	params.Lambda = c.Lambda
	params.MinSumHessianInLeaf = c.MinSumHessianInLeaf
	params.BaggingFraction = c.BaggingFraction
	params.BaggingFreq = c.BaggingFreq
	params.FeatureFraction = c.FeatureFraction
	params.NumClass = numClass
	params.Seed = c.Seed
	params.NumThreads = c.NumThreads
	return params
}
