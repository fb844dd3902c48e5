package lightgbm

import (
	"runtime"

	"github.com/polishequity/analytics/core/parallel"
	"github.com/polishequity/analytics/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Predictor scores batches of rows concurrently against a trained model.
type Predictor struct {
	model      *Model
	numThreads int
	threshold  int
}

// NewPredictor creates a new predictor with the given model
func NewPredictor(model *Model) *Predictor {
	return &Predictor{
		model:      model,
		numThreads: runtime.NumCPU(),
		threshold:  1024,
	}
}

// SetNumThreads sets the number of threads for parallel prediction
func (p *Predictor) SetNumThreads(n int) {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	p.numThreads = n
}

// PredictRaw returns the n x NumClass raw scores.
func (p *Predictor) PredictRaw(X mat.Matrix) (*mat.Dense, error) {
	return p.predict(X, false)
}

// PredictProba returns the n x NumClass class probabilities.
func (p *Predictor) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	return p.predict(X, true)
}

// Predict returns the argmax class index of each row.
func (p *Predictor) Predict(X mat.Matrix) ([]int, error) {
	proba, err := p.PredictProba(X)
	if err != nil {
		return nil, err
	}
	rows, _ := proba.Dims()
	classes := make([]int, rows)
	for i := range classes {
		classes[i] = Argmax(proba.RawRowView(i))
	}
	return classes, nil
}

func (p *Predictor) predict(X mat.Matrix, proba bool) (*mat.Dense, error) {
	if p.model == nil || p.model.NumClass == 0 {
		return nil, errors.NewNotFittedError("Predictor", "Predict")
	}
	rows, cols := X.Dims()
	if cols != p.model.NumFeatures {
		return nil, errors.NewDimensionError("Predictor.Predict", p.model.NumFeatures, cols, 1)
	}

	numIteration := p.model.predictIteration()
	out := mat.NewDense(rows, p.model.NumClass, nil)
	parallel.ParallelizeWithThreshold(rows, p.threshold, p.numThreads, func(start, end int) {
		features := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(features, i, X)
			var scores []float64
			if proba {
				scores = p.model.PredictProbaSingle(features, numIteration)
			} else {
				scores = p.model.PredictRawSingle(features, numIteration)
			}
			copy(out.RawRowView(i), scores)
		}
	})
	return out, nil
}
