package lightgbm

import (
	"math"

	"github.com/polishequity/analytics/core/parallel"
	"github.com/polishequity/analytics/pkg/errors"
)

// MulticlassObjectiveFunction computes per-class gradients from raw scores.
// Scores are row-major: scores[i*numClass+k].
type MulticlassObjectiveFunction interface {
	// InitScores returns the starting raw score of each class.
	InitScores(y []int) []float64

	// Gradients fills grad[k][i] and hess[k][i] for every row.
	Gradients(y []int, scores []float64, grad, hess [][]float64)

	// Loss returns the mean loss over all rows.
	Loss(y []int, scores []float64) float64

	// Name is the metric name reported to callbacks.
	Name() string
}

// MulticlassSoftmax is the softmax cross-entropy objective. The hessian is
// p(1-p) scaled by K/(K-1).
type MulticlassSoftmax struct {
	numClass int
	factor   float64
	workers  int
}

// NewMulticlassSoftmax creates the objective for numClass classes.
func NewMulticlassSoftmax(numClass, workers int) *MulticlassSoftmax {
	factor := 1.0
	if numClass > 1 {
		factor = float64(numClass) / float64(numClass-1)
	}
	return &MulticlassSoftmax{numClass: numClass, factor: factor, workers: workers}
}

// InitScores returns log(prior) per class.
func (m *MulticlassSoftmax) InitScores(y []int) []float64 {
	counts := make([]float64, m.numClass)
	for _, c := range y {
		counts[c]++
	}
	init := make([]float64, m.numClass)
	for k, c := range counts {
		init[k] = math.Log(math.Max(c/float64(len(y)), 1e-15))
	}
	return init
}

// Gradients implements MulticlassObjectiveFunction.
func (m *MulticlassSoftmax) Gradients(y []int, scores []float64, grad, hess [][]float64) {
	K := m.numClass
	parallel.ParallelizeWithThreshold(len(y), 4096, m.workers, func(start, end int) {
		p := make([]float64, K)
		for i := start; i < end; i++ {
			errors.Softmax(scores[i*K:(i+1)*K], p)
			for k := 0; k < K; k++ {
				g := p[k]
				if k == y[i] {
					g -= 1.0
				}
				h := m.factor * p[k] * (1.0 - p[k])
				if h < 1e-16 {
					h = 1e-16
				}
				grad[k][i] = g
				hess[k][i] = h
			}
		}
	})
}

// Loss returns the mean multiclass log loss.
func (m *MulticlassSoftmax) Loss(y []int, scores []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	K := m.numClass
	total := 0.0
	for i, c := range y {
		row := scores[i*K : (i+1)*K]
		total += errors.LogSumExp(row) - row[c]
	}
	return total / float64(len(y))
}

// Name implements MulticlassObjectiveFunction.
func (m *MulticlassSoftmax) Name() string {
	return "multi_logloss"
}
