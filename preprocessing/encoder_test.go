package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
)

var (
	_ model.Transformer    = (*MinMaxScaler)(nil)
	_ model.Transformer    = (*MeanImputer)(nil)
	_ model.RowTransformer = (*MinMaxScaler)(nil)
	_ model.RowTransformer = (*MeanImputer)(nil)
)

func TestLabelEncoderRoundTrip(t *testing.T) {
	labels := []string{"Neutral", "Good", "Neutral", "Bad", "Good"}
	le := NewLabelEncoder()
	require.NoError(t, le.Fit(labels))

	assert.Equal(t, []string{"Neutral", "Good", "Bad"}, le.Classes)
	for _, l := range labels {
		k, err := le.Encode(l)
		require.NoError(t, err)
		back, err := le.Decode(k)
		require.NoError(t, err)
		assert.Equal(t, l, back)
	}
}

func TestLabelEncoderUnknown(t *testing.T) {
	le := NewLabelEncoder()
	require.NoError(t, le.Fit([]string{"Good", "Bad"}))

	_, err := le.EncodeAll([]string{"Good", "Excellent", "Bad", "Excellent", "Awful"})
	var lerr *errors.LabelEncodingError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, map[string][]int{"Excellent": {1, 3}, "Awful": {4}}, lerr.Rows)

	_, err = le.Decode(7)
	assert.Error(t, err)
}

func TestLabelEncoderReindex(t *testing.T) {
	le := &LabelEncoder{Classes: []string{"a", "b"}}
	le.SetFitted()
	k, err := le.Encode("b")
	require.NoError(t, err)
	assert.Equal(t, 1, k)

	le.Reindex()
	k, err = le.Encode("a")
	require.NoError(t, err)
	assert.Equal(t, 0, k)
}

func TestNotFitted(t *testing.T) {
	var nf *errors.NotFittedError

	_, err := NewMinMaxScalerDefault().Transform(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))

	_, err = NewMeanImputer().Transform(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))

	_, err = NewOneHotEncoder("sector").Transform("x")
	assert.True(t, errors.As(err, &nf))

	_, err = NewLabelEncoder().Encode("x")
	assert.True(t, errors.As(err, &nf))
}

func TestMinMaxScalerInverse(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		1, 10,
		2, 20,
		3, 30,
	})
	s := NewMinMaxScalerDefault()
	scaled, err := s.FitTransform(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.5, 1}, mat.Col(nil, 0, scaled))

	back, err := s.InverseTransform(scaled)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(X, back, 1e-12))

	_, err = s.Transform(mat.NewDense(1, 3, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestMinMaxScalerRejectsNaN(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{1, nan})
	err := NewMinMaxScalerDefault().Fit(X)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}
