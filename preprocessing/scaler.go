// Package preprocessing turns input records into feature vectors: mean
// imputation, min-max scaling and one-hot encoding, fit once on training
// data and frozen afterwards.
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
)

// MinMaxScaler maps each column linearly so that its training range lands
// on FeatureRange. Values outside the training range are not clamped.
type MinMaxScaler struct {
	model.BaseEstimator

	// Scale is max-min per column, or 1 for a constant column.
	Scale []float64

	// DataMin is the training minimum per column.
	DataMin []float64

	// DataMax is the training maximum per column.
	DataMax []float64

	NFeatures int

	// FeatureRange is the target interval, [0, 1] by default.
	FeatureRange [2]float64
}

// NewMinMaxScaler creates a scaler targeting featureRange.
//
//	scaler := preprocessing.NewMinMaxScaler([2]float64{0.0, 1.0})
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange: featureRange,
	}
}

// NewMinMaxScalerDefault creates a scaler targeting [0, 1].
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit records the per-column minimum and maximum. X must not contain NaN.
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if math.IsNaN(lo) || math.IsNaN(hi) {
			return errors.NewValueError("MinMaxScaler.Fit", fmt.Sprintf("column %d contains NaN; impute first", j))
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi

		if dataRange := hi - lo; math.Abs(dataRange) < 1e-8 {
			// constant column
			m.Scale[j] = 1.0
		} else {
			m.Scale[j] = dataRange
		}
	}

	m.SetFitted()
	return nil
}

func (m *MinMaxScaler) scale(j int, v float64) float64 {
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	return (v-m.DataMin[j])/m.Scale[j]*featureRange + m.FeatureRange[0]
}

// Transform scales X with the fitted statistics.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "Transform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, m.scale(j, X.At(i, j)))
		}
	}
	return result, nil
}

// FitTransform fits on X and scales it.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// TransformRow scales row in place.
func (m *MinMaxScaler) TransformRow(row []float64) error {
	if !m.IsFitted() {
		return errors.NewNotFittedError("MinMaxScaler", "TransformRow")
	}
	if len(row) != m.NFeatures {
		return errors.NewDimensionError("MinMaxScaler.TransformRow", m.NFeatures, len(row), 1)
	}
	m.scaleRow(row)
	return nil
}

func (m *MinMaxScaler) scaleRow(row []float64) {
	for j, v := range row {
		row[j] = m.scale(j, v)
	}
}

// InverseTransform maps scaled values back to the original units.
func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MinMaxScaler", "InverseTransform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.InverseTransform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	featureRange := m.FeatureRange[1] - m.FeatureRange[0]
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			result.Set(i, j, (v-m.FeatureRange[0])/featureRange*m.Scale[j]+m.DataMin[j])
		}
	}
	return result, nil
}

func (m *MinMaxScaler) String() string {
	if !m.IsFitted() {
		return fmt.Sprintf("MinMaxScaler(feature_range=%v)", m.FeatureRange)
	}
	return fmt.Sprintf("MinMaxScaler(feature_range=%v, n_features=%d)", m.FeatureRange, m.NFeatures)
}
