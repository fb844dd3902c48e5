package metrics

import (
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/sjwhitworth/golearn/evaluation"
)

// ConfusionMatrix counts (true, predicted) class pairs. Counts[i][j] is the
// number of rows of true class i predicted as class j.
type ConfusionMatrix struct {
	Classes []string
	Counts  [][]int
}

// NewConfusionMatrix creates an all-zero matrix over classes.
func NewConfusionMatrix(classes []string) *ConfusionMatrix {
	counts := make([][]int, len(classes))
	for i := range counts {
		counts[i] = make([]int, len(classes))
	}
	return &ConfusionMatrix{Classes: append([]string(nil), classes...), Counts: counts}
}

// FromCounts builds a matrix from a square table of counts.
func FromCounts(classes []string, counts [][]int) (*ConfusionMatrix, error) {
	if len(counts) != len(classes) {
		return nil, errors.NewDimensionError("FromCounts", len(classes), len(counts), 0)
	}
	cm := NewConfusionMatrix(classes)
	for i, row := range counts {
		if len(row) != len(classes) {
			return nil, errors.NewDimensionError("FromCounts", len(classes), len(row), 1)
		}
		for j, c := range row {
			if c < 0 {
				return nil, errors.NewValueError("FromCounts", "negative count")
			}
			cm.Counts[i][j] = c
		}
	}
	return cm, nil
}

// Add records one prediction.
func (c *ConfusionMatrix) Add(trueKey, predKey int) error {
	k := len(c.Classes)
	if trueKey < 0 || trueKey >= k || predKey < 0 || predKey >= k {
		return errors.NewValueError("ConfusionMatrix.Add", "class key out of range")
	}
	c.Counts[trueKey][predKey]++
	return nil
}

// Total returns the number of recorded predictions.
func (c *ConfusionMatrix) Total() int {
	total := 0
	for _, row := range c.Counts {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Trace returns the number of correct predictions.
func (c *ConfusionMatrix) Trace() int {
	trace := 0
	for i := range c.Counts {
		trace += c.Counts[i][i]
	}
	return trace
}

// Golearn converts the matrix to golearn's reference -> predicted map.
func (c *ConfusionMatrix) Golearn() evaluation.ConfusionMatrix {
	out := make(evaluation.ConfusionMatrix, len(c.Classes))
	for i, ref := range c.Classes {
		row := make(map[string]int, len(c.Classes))
		for j, pred := range c.Classes {
			row[pred] = c.Counts[i][j]
		}
		out[ref] = row
	}
	return out
}
