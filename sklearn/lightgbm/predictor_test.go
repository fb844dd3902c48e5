package lightgbm

import (
	"context"
	"testing"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func trainedModel(t *testing.T) (*Model, *mat.Dense, []int) {
	t.Helper()
	X, y := threeClassData(150)
	trainer := NewTrainer(smallParams())
	require.NoError(t, trainer.Fit(context.Background(), X, y))
	return trainer.GetModel(), X, y
}

func TestPredictorProbabilitiesSumToOne(t *testing.T) {
	model, X, _ := trainedModel(t)

	proba, err := NewPredictor(model).PredictProba(X)
	require.NoError(t, err)
	rows, cols := proba.Dims()
	require.Equal(t, 150, rows)
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		sum := 0.0
		for _, p := range proba.RawRowView(i) {
			assert.GreaterOrEqual(t, p, 0.0)
			sum += p
		}
		assert.InDelta(t, 1.0, sum, 1e-9)
	}
}

func TestPredictorMatchesModel(t *testing.T) {
	model, X, _ := trainedModel(t)

	want, err := model.Predict(X)
	require.NoError(t, err)

	for _, threads := range []int{1, 4} {
		p := NewPredictor(model)
		p.SetNumThreads(threads)
		p.threshold = 0
		got, err := p.Predict(X)
		require.NoError(t, err)
		assert.Equal(t, want, got, "threads=%d", threads)
	}
}

func TestPredictorRawScoresIncludeInitScores(t *testing.T) {
	model := NewModel()
	model.NumClass = 2
	model.NumFeatures = 1
	model.InitScores = []float64{0.5, -0.5}

	raw, err := NewPredictor(model).PredictRaw(mat.NewDense(1, 1, []float64{3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -0.5}, raw.RawRowView(0))
}

func TestPredictorDimensionMismatch(t *testing.T) {
	model, _, _ := trainedModel(t)

	_, err := NewPredictor(model).PredictProba(mat.NewDense(2, 5, nil))
	var dimErr *errors.DimensionError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 2, dimErr.Expected)
	assert.Equal(t, 5, dimErr.Got)
}

func TestPredictorNotFitted(t *testing.T) {
	_, err := NewPredictor(NewModel()).PredictProba(mat.NewDense(1, 1, nil))
	var nfErr *errors.NotFittedError
	assert.True(t, errors.As(err, &nfErr))
}

func TestTreePredictFollowsThreshold(t *testing.T) {
	tree := Tree{
		ShrinkageRate: 0.5,
		Nodes: []Node{
			{NodeID: 0, ParentID: -1, LeftChild: 1, RightChild: 2, NodeType: NumericalNode, SplitFeature: 0, Threshold: 1.5, DefaultLeft: true},
			{NodeID: 1, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: -2},
			{NodeID: 2, ParentID: 0, LeftChild: -1, RightChild: -1, LeafValue: 4},
		},
	}
	assert.Equal(t, -1.0, tree.Predict([]float64{1.5}))
	assert.Equal(t, 2.0, tree.Predict([]float64{1.6}))
	assert.Equal(t, -1.0, tree.Predict([]float64{nan()}))
}

func TestArgmaxTiesGoToLowestIndex(t *testing.T) {
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.4, 0.4}))
	assert.Equal(t, 0, Argmax([]float64{0.5}))
}
