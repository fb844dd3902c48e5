package lightgbm

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/polishequity/analytics/pkg/errors"
)

// TrainingParams contains all training hyperparameters.
type TrainingParams struct {
	// Basic parameters
	NumIterations int     `json:"num_iterations" yaml:"num_iterations"`
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`
	NumLeaves     int     `json:"num_leaves" yaml:"num_leaves"`
	MaxDepth      int     `json:"max_depth" yaml:"max_depth"`
	MinDataInLeaf int     `json:"min_data_in_leaf" yaml:"min_data_in_leaf"`

	// Regularization
	Lambda              float64 `json:"lambda_l2" yaml:"lambda_l2"`
	Alpha               float64 `json:"lambda_l1" yaml:"lambda_l1"`
	MinGainToSplit      float64 `json:"min_gain_to_split" yaml:"min_gain_to_split"`
	MinSumHessianInLeaf float64 `json:"min_sum_hessian_in_leaf" yaml:"min_sum_hessian_in_leaf"`

	// Sampling
	BaggingFraction float64 `json:"bagging_fraction" yaml:"bagging_fraction"`
	BaggingFreq     int     `json:"bagging_freq" yaml:"bagging_freq"`
	FeatureFraction float64 `json:"feature_fraction" yaml:"feature_fraction"`

	// Histogram
	MaxBin int `json:"max_bin" yaml:"max_bin"`

	// Objective
	NumClass int `json:"num_class" yaml:"num_class"`

	// Other
	Seed       uint64 `json:"seed" yaml:"seed"`
	NumThreads int    `json:"num_threads" yaml:"num_threads"`
}

// DefaultParams returns the LightGBM defaults.
func DefaultParams() TrainingParams {
	return TrainingParams{
		NumIterations:       100,
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1.0,
		FeatureFraction:     1.0,
		MaxBin:              255,
	}
}

// Validate checks parameter ranges.
func (p TrainingParams) Validate() error {
	switch {
	case p.NumIterations <= 0:
		return errors.NewValidationError("num_iterations", "must be positive", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be at least 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_data_in_leaf", "must be at least 1", p.MinDataInLeaf)
	case p.MaxBin < 2 || p.MaxBin > math.MaxUint16:
		return errors.NewValidationError("max_bin", "must be in [2, 65535]", p.MaxBin)
	case p.Lambda < 0 || p.Alpha < 0:
		return errors.NewValidationError("lambda", "must be non-negative", p.Lambda)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("bagging_fraction", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("feature_fraction", "must be in (0, 1]", p.FeatureFraction)
	}
	return nil
}

// SamplingStrategy handles bagging and feature subsampling. It is driven
// by a single seeded PCG stream and must be called from one goroutine in a
// fixed order to stay reproducible.
type SamplingStrategy struct {
	rng             *rand.Rand
	featureFraction float64
	baggingFraction float64
	baggingFreq     int

	bag []int
}

// NewSamplingStrategy creates a sampling strategy seeded from params.Seed.
func NewSamplingStrategy(params TrainingParams) *SamplingStrategy {
	return &SamplingStrategy{
		rng:             rand.New(rand.NewPCG(params.Seed, params.Seed^0x9e3779b97f4a7c15)),
		featureFraction: params.FeatureFraction,
		baggingFraction: params.BaggingFraction,
		baggingFreq:     params.BaggingFreq,
	}
}

// SampleFeatures returns the feature indices available to one tree, in
// ascending order.
func (s *SamplingStrategy) SampleFeatures(numFeatures int) []int {
	if s.featureFraction >= 1.0 || s.featureFraction <= 0 {
		return identity(numFeatures)
	}

	numSample := int(float64(numFeatures) * s.featureFraction)
	numSample = max(1, min(numSample, numFeatures))

	perm := identity(numFeatures)
	for i := 0; i < numSample; i++ {
		j := i + s.rng.IntN(numFeatures-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return sortedCopy(perm[:numSample])
}

// SampleInstances returns the in-bag rows for an iteration, in ascending
// order. A new bag is drawn every baggingFreq iterations and reused in
// between.
func (s *SamplingStrategy) SampleInstances(numInstances int, iteration int) []int {
	if s.baggingFreq <= 0 || s.baggingFraction >= 1.0 || s.baggingFraction <= 0 {
		return identity(numInstances)
	}
	if s.bag != nil && iteration%s.baggingFreq != 0 {
		return s.bag
	}

	numSample := int(float64(numInstances) * s.baggingFraction)
	numSample = max(1, min(numSample, numInstances))

	perm := identity(numInstances)
	for i := 0; i < numSample; i++ {
		j := i + s.rng.IntN(numInstances-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	s.bag = sortedCopy(perm[:numSample])
	return s.bag
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func sortedCopy(in []int) []int {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

// RegularizationStrategy applies L1/L2 penalties to leaf outputs and split
// gains.
type RegularizationStrategy struct {
	lambdaL1 float64
	lambdaL2 float64
}

// NewRegularizationStrategy creates a regularization strategy.
func NewRegularizationStrategy(params TrainingParams) *RegularizationStrategy {
	return &RegularizationStrategy{
		lambdaL1: params.Alpha,
		lambdaL2: params.Lambda,
	}
}

// LeafOutput returns the optimal leaf value -G/(H+lambda), with L1 soft
// thresholding.
func (r *RegularizationStrategy) LeafOutput(sumGrad, sumHess float64) float64 {
	const epsilon = 1e-10
	return -r.thresholdL1(sumGrad) / (sumHess + r.lambdaL2 + epsilon)
}

// SplitGain returns the loss reduction of splitting a parent into left and
// right children.
func (r *RegularizationStrategy) SplitGain(leftGrad, leftHess, rightGrad, rightHess, parentGrad, parentHess float64) float64 {
	return r.score(leftGrad, leftHess) + r.score(rightGrad, rightHess) - r.score(parentGrad, parentHess)
}

func (r *RegularizationStrategy) score(sumGrad, sumHess float64) float64 {
	const epsilon = 1e-10
	g := r.thresholdL1(sumGrad)
	return 0.5 * g * g / (sumHess + r.lambdaL2 + epsilon)
}

func (r *RegularizationStrategy) thresholdL1(g float64) float64 {
	if r.lambdaL1 <= 0 {
		return g
	}
	switch {
	case g > r.lambdaL1:
		return g - r.lambdaL1
	case g < -r.lambdaL1:
		return g + r.lambdaL1
	default:
		return 0
	}
}
