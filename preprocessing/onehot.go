package preprocessing

import (
	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/telemetry"
)

// OneHotEncoder maps a categorical column to indicator groups. The
// vocabulary is ordered by first occurrence in the training data. Values
// outside the vocabulary encode as an all-zero group.
type OneHotEncoder struct {
	model.BaseEstimator

	Column     string
	Vocabulary []string

	index map[string]int
}

// NewOneHotEncoder creates an encoder for the named column.
func NewOneHotEncoder(column string) *OneHotEncoder {
	return &OneHotEncoder{Column: column}
}

// Fit builds the vocabulary.
func (e *OneHotEncoder) Fit(values []string) error {
	if len(values) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Vocabulary = e.Vocabulary[:0]
	e.index = make(map[string]int)
	for _, v := range values {
		if _, ok := e.index[v]; ok {
			continue
		}
		e.index[v] = len(e.Vocabulary)
		e.Vocabulary = append(e.Vocabulary, v)
	}
	e.SetFitted()
	return nil
}

// Width is the size of one encoded group.
func (e *OneHotEncoder) Width() int {
	return len(e.Vocabulary)
}

// Lookup returns the vocabulary position of value.
func (e *OneHotEncoder) Lookup(value string) (int, bool) {
	if e.index == nil {
		return indexOf(e.Vocabulary, value)
	}
	i, ok := e.index[value]
	return i, ok
}

// EncodeInto writes the indicator group for value into dst, which must have
// length Width. It reports whether value was known. Unknown values raise an
// UnseenCategoryWarning and leave dst zeroed.
func (e *OneHotEncoder) EncodeInto(dst []float64, value string) bool {
	clear(dst)
	i, ok := e.Lookup(value)
	if !ok {
		errors.Warn(errors.NewUnseenCategoryWarning(e.Column, value))
		telemetry.Observer.UnseenCategory(e.Column)
		return false
	}
	dst[i] = 1
	return true
}

// Transform returns the indicator group for value.
func (e *OneHotEncoder) Transform(value string) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("OneHotEncoder", "Transform")
	}
	out := make([]float64, e.Width())
	e.EncodeInto(out, value)
	return out, nil
}

// Reindex rebuilds the lookup table after the vocabulary was restored from
// a persisted bundle.
func (e *OneHotEncoder) Reindex() {
	e.index = make(map[string]int, len(e.Vocabulary))
	for i, v := range e.Vocabulary {
		e.index[v] = i
	}
}

func indexOf(values []string, v string) (int, bool) {
	for i, s := range values {
		if s == v {
			return i, true
		}
	}
	return 0, false
}
