// Package model holds the fitted-state bookkeeping, the transformer
// contract and gob persistence shared by the preprocessing stages and the
// booster.
package model

// EstimatorState is the fit state of a component.
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

// BaseEstimator is embedded by components that must be fit before use.
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted reports whether Fit has completed.
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted marks the component as fitted.
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset returns the component to the unfitted state.
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
