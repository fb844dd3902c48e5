package preprocessing

import (
	"github.com/polishequity/analytics/core/model"
	"github.com/polishequity/analytics/pkg/errors"
)

// LabelEncoder maps string labels to dense integer keys in order of first
// occurrence, and back.
type LabelEncoder struct {
	model.BaseEstimator

	Classes []string

	index map[string]int
}

// NewLabelEncoder creates an unfitted LabelEncoder.
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit assigns keys to the distinct labels.
func (l *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	l.Classes = nil
	l.index = make(map[string]int)
	for _, s := range labels {
		if _, ok := l.index[s]; ok {
			continue
		}
		l.index[s] = len(l.Classes)
		l.Classes = append(l.Classes, s)
	}
	l.SetFitted()
	return nil
}

// NumClasses returns the vocabulary size.
func (l *LabelEncoder) NumClasses() int {
	return len(l.Classes)
}

// Encode returns the key of label.
func (l *LabelEncoder) Encode(label string) (int, error) {
	if !l.IsFitted() {
		return 0, errors.NewNotFittedError("LabelEncoder", "Encode")
	}
	var k int
	var ok bool
	if l.index == nil {
		k, ok = indexOf(l.Classes, label)
	} else {
		k, ok = l.index[label]
	}
	if !ok {
		return 0, errors.NewLabelEncodingError(map[string][]int{label: nil})
	}
	return k, nil
}

// EncodeAll encodes labels and collects every unknown label with its row
// positions into a single LabelEncodingError.
func (l *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "EncodeAll")
	}
	keys := make([]int, len(labels))
	var unknown map[string][]int
	for i, s := range labels {
		k, err := l.Encode(s)
		if err != nil {
			if unknown == nil {
				unknown = make(map[string][]int)
			}
			unknown[s] = append(unknown[s], i)
			continue
		}
		keys[i] = k
	}
	if unknown != nil {
		return nil, errors.NewLabelEncodingError(unknown)
	}
	return keys, nil
}

// Reindex rebuilds the lookup table after Classes was restored.
func (l *LabelEncoder) Reindex() {
	l.index = make(map[string]int, len(l.Classes))
	for i, c := range l.Classes {
		l.index[c] = i
	}
}

// Decode returns the label of key.
func (l *LabelEncoder) Decode(key int) (string, error) {
	if !l.IsFitted() {
		return "", errors.NewNotFittedError("LabelEncoder", "Decode")
	}
	if key < 0 || key >= len(l.Classes) {
		return "", errors.NewValueError("LabelEncoder.Decode", "key out of range")
	}
	return l.Classes[key], nil
}
