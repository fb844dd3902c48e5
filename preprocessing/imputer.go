package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
)

// MeanImputer replaces NaN with the per-column mean of the non-missing
// training values. A column with no observed values imputes 0.
type MeanImputer struct {
	model.BaseEstimator

	// Means holds the fill value of each column.
	Means []float64

	// Observed counts the non-missing training values of each column.
	Observed []int
}

// NewMeanImputer creates an unfitted MeanImputer.
func NewMeanImputer() *MeanImputer {
	return &MeanImputer{}
}

// Fit computes the column means.
func (m *MeanImputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MeanImputer.Fit", "empty data", errors.ErrEmptyData)
	}

	m.Means = make([]float64, c)
	m.Observed = make([]int, c)
	for j := 0; j < c; j++ {
		sum := 0.0
		for i := 0; i < r; i++ {
			v := X.At(i, j)
			if math.IsNaN(v) {
				continue
			}
			sum += v
			m.Observed[j]++
		}
		if m.Observed[j] > 0 {
			m.Means[j] = sum / float64(m.Observed[j])
		}
	}

	m.SetFitted()
	return nil
}

// Transform returns a copy of X with missing values filled.
func (m *MeanImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MeanImputer", "Transform")
	}
	r, c := X.Dims()
	if c != len(m.Means) {
		return nil, errors.NewDimensionError("MeanImputer.Transform", len(m.Means), c, 1)
	}

	result := mat.DenseCopyOf(X)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.IsNaN(result.At(i, j)) {
				result.Set(i, j, m.Means[j])
			}
		}
	}
	return result, nil
}

// FitTransform fits on X and fills it.
func (m *MeanImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// TransformRow fills missing values of row in place.
func (m *MeanImputer) TransformRow(row []float64) error {
	if !m.IsFitted() {
		return errors.NewNotFittedError("MeanImputer", "TransformRow")
	}
	if len(row) != len(m.Means) {
		return errors.NewDimensionError("MeanImputer.TransformRow", len(m.Means), len(row), 1)
	}
	m.fill(row)
	return nil
}

func (m *MeanImputer) fill(row []float64) {
	for j, v := range row {
		if math.IsNaN(v) {
			row[j] = m.Means[j]
		}
	}
}
