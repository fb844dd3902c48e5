package lightgbm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMulticlassSoftmaxInitScores(t *testing.T) {
	obj := NewMulticlassSoftmax(3, 1)
	init := obj.InitScores([]int{0, 0, 1, 2})
	require.Len(t, init, 3)
	assert.InDelta(t, math.Log(0.5), init[0], 1e-12)
	assert.InDelta(t, math.Log(0.25), init[1], 1e-12)
	assert.InDelta(t, math.Log(0.25), init[2], 1e-12)
}

func TestMulticlassSoftmaxGradients(t *testing.T) {
	obj := NewMulticlassSoftmax(3, 1)
	y := []int{0, 2}
	scores := []float64{0, 0, 0, 1, -1, 2}
	grad := [][]float64{make([]float64, 2), make([]float64, 2), make([]float64, 2)}
	hess := [][]float64{make([]float64, 2), make([]float64, 2), make([]float64, 2)}

	obj.Gradients(y, scores, grad, hess)

	assert.InDelta(t, 1.0/3-1, grad[0][0], 1e-12)
	assert.InDelta(t, 1.0/3, grad[1][0], 1e-12)
	assert.InDelta(t, 1.5*(1.0/3)*(2.0/3), hess[0][0], 1e-12)
	for i := range y {
		sum := grad[0][i] + grad[1][i] + grad[2][i]
		assert.InDelta(t, 0, sum, 1e-12, "gradients of row %d should sum to zero", i)
		for k := range hess {
			assert.Greater(t, hess[k][i], 0.0)
		}
	}
}

func TestMulticlassSoftmaxLoss(t *testing.T) {
	obj := NewMulticlassSoftmax(3, 1)
	assert.InDelta(t, math.Log(3), obj.Loss([]int{0, 1}, make([]float64, 6)), 1e-12)
	assert.Equal(t, "multi_logloss", obj.Name())
	assert.Zero(t, obj.Loss(nil, nil))
}
