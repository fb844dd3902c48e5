package metrics

import (
	"math"
	"strings"
	"testing"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/sjwhitworth/golearn/evaluation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestEvaluateHandComputed(t *testing.T) {
	cm, err := FromCounts([]string{"Good", "Average", "Bad"}, [][]int{
		{5, 1, 0},
		{2, 4, 0},
		{0, 0, 3},
	})
	require.NoError(t, err)

	report, err := Evaluate(cm)
	require.NoError(t, err)

	assert.InDelta(t, 0.8, report.MicroAccuracy, 1e-12)
	assert.InDelta(t, (5.0/6+4.0/6+1)/3, report.MacroAccuracy, 1e-6)

	tests := []struct {
		class     string
		tp, fp    int
		fn        int
		precision float64
		recall    float64
	}{
		{"Good", 5, 2, 1, 5.0 / 7, 5.0 / 6},
		{"Average", 4, 1, 2, 4.0 / 5, 4.0 / 6},
		{"Bad", 3, 0, 0, 1, 1},
	}
	for i, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			m := report.PerClass[i]
			assert.Equal(t, tt.class, m.Class)
			assert.Equal(t, tt.tp, m.TP)
			assert.Equal(t, tt.fp, m.FP)
			assert.Equal(t, tt.fn, m.FN)
			assert.InDelta(t, tt.precision, m.Precision, 1e-6)
			assert.InDelta(t, tt.recall, m.Recall, 1e-6)
		})
	}

	assert.InDelta(t, evaluation.GetAccuracy(cm.Golearn()), report.MicroAccuracy, 1e-12)
}

func TestEvaluateNeverPredictedClass(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetWarningHandler(func(error) {}) })

	cm, err := FromCounts([]string{"a", "b"}, [][]int{
		{2, 0},
		{1, 0},
	})
	require.NoError(t, err)

	report, err := Evaluate(cm)
	require.NoError(t, err)

	b := report.PerClass[1]
	assert.Zero(t, b.Precision)
	assert.Zero(t, b.Recall)
	assert.False(t, math.IsNaN(b.Precision))
	assert.Equal(t, 1, b.Support)
	require.Len(t, warnings, 1)

	var undefined *errors.UndefinedMetricWarning
	assert.True(t, errors.As(warnings[0], &undefined))
}

func TestEvaluateMacroSkipsAbsentClasses(t *testing.T) {
	cm := NewConfusionMatrix([]string{"a", "b", "c"})
	require.NoError(t, cm.Add(0, 0))
	require.NoError(t, cm.Add(1, 1))
	require.NoError(t, cm.Add(1, 0))

	report, err := Evaluate(cm)
	require.NoError(t, err)
	assert.InDelta(t, (1+0.5)/2.0, report.MacroAccuracy, 1e-5)
	assert.Equal(t, 3, cm.Total())
	assert.Equal(t, 2, cm.Trace())
}

func TestEvaluateEmpty(t *testing.T) {
	_, err := Evaluate(NewConfusionMatrix([]string{"a"}))
	var valErr *errors.ValueError
	assert.True(t, errors.As(err, &valErr))

	_, err = Evaluate(nil)
	assert.Error(t, err)
}

func TestConfusionMatrixValidation(t *testing.T) {
	cm := NewConfusionMatrix([]string{"a", "b"})
	assert.Error(t, cm.Add(2, 0))
	assert.Error(t, cm.Add(0, -1))

	_, err := FromCounts([]string{"a", "b"}, [][]int{{1, 2}})
	assert.Error(t, err)
	_, err = FromCounts([]string{"a"}, [][]int{{-1}})
	assert.Error(t, err)
}

func TestLogLoss(t *testing.T) {
	proba := mat.NewDense(2, 2, []float64{
		0.8, 0.2,
		0.0, 1.0,
	})

	loss, err := LogLoss([]int{0, 0}, proba)
	require.NoError(t, err)
	assert.InDelta(t, (-math.Log(0.8)-math.Log(1e-15))/2, loss, 1e-9)

	_, err = LogLoss([]int{0}, proba)
	assert.Error(t, err)
	_, err = LogLoss([]int{0, 5}, proba)
	assert.Error(t, err)
	_, err = LogLoss(nil, proba)
	assert.Error(t, err)
}

func TestReportRendering(t *testing.T) {
	cm, err := FromCounts([]string{"Good", "Bad"}, [][]int{{3, 1}, {0, 2}})
	require.NoError(t, err)
	report, err := Evaluate(cm)
	require.NoError(t, err)
	report.LogLoss = 0.25

	text := report.String()
	assert.Contains(t, text, "Good")
	assert.Contains(t, text, "micro accuracy: 0.8333")
	assert.Contains(t, text, "log loss:       0.2500")
	assert.Equal(t, 1, strings.Count(text, "log loss"))
	assert.True(t, strings.HasSuffix(text, "\n"))
	assert.True(t, strings.Contains(report.Summary(), "Bad"))
}
