package model

import "gonum.org/v1/gonum/mat"

// Transformer is a column-wise stage fit on a training matrix and applied
// unchanged to later matrices.
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// RowTransformer applies a fitted stage to a single row in place.
type RowTransformer interface {
	TransformRow(row []float64) error
}
