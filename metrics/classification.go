package metrics

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/mat"
)

// epsilon keeps precision and recall defined for classes that were never
// predicted or never present.
const epsilon = 1e-6

// ClassMetrics holds the one-vs-rest statistics of a single class.
type ClassMetrics struct {
	Class     string
	TP        int
	FP        int
	FN        int
	Support   int
	Precision float64
	Recall    float64
}

// Report is the evaluation result of one held-out set.
type Report struct {
	PerClass      []ClassMetrics
	MicroAccuracy float64
	MacroAccuracy float64
	LogLoss       float64
	Confusion     *ConfusionMatrix
}

// Evaluate derives per-class and aggregate metrics from a confusion matrix.
// Macro accuracy is the mean per-class recall over classes with support.
func Evaluate(cm *ConfusionMatrix) (*Report, error) {
	if cm == nil || len(cm.Classes) == 0 {
		return nil, errors.NewValueError("Evaluate", "empty confusion matrix")
	}
	total := cm.Total()
	if total == 0 {
		return nil, errors.NewValueError("Evaluate", "confusion matrix has no predictions")
	}

	k := len(cm.Classes)
	report := &Report{
		PerClass:      make([]ClassMetrics, k),
		MicroAccuracy: float64(cm.Trace()) / float64(total),
		Confusion:     cm,
	}

	macroSum, present := 0.0, 0
	for i := 0; i < k; i++ {
		m := ClassMetrics{Class: cm.Classes[i], TP: cm.Counts[i][i]}
		for j := 0; j < k; j++ {
			m.Support += cm.Counts[i][j]
			if j != i {
				m.FN += cm.Counts[i][j]
				m.FP += cm.Counts[j][i]
			}
		}
		m.Precision = float64(m.TP) / (float64(m.TP+m.FP) + epsilon)
		m.Recall = float64(m.TP) / (float64(m.TP+m.FN) + epsilon)

		if m.TP+m.FP == 0 && m.Support > 0 {
			errors.Warn(errors.NewUndefinedMetricWarning("precision",
				fmt.Sprintf("class %q has no predicted samples", m.Class), 0))
		}
		if m.Support > 0 {
			macroSum += m.Recall
			present++
		}
		report.PerClass[i] = m
	}
	if present > 0 {
		report.MacroAccuracy = macroSum / float64(present)
	}
	return report, nil
}

// LogLoss returns the mean negative log probability of the true class.
// Probabilities are clipped to [1e-15, 1-1e-15].
func LogLoss(trueKeys []int, proba mat.Matrix) (float64, error) {
	rows, cols := proba.Dims()
	if len(trueKeys) == 0 {
		return 0, errors.NewValueError("LogLoss", "empty input")
	}
	if rows != len(trueKeys) {
		return 0, errors.NewDimensionError("LogLoss", len(trueKeys), rows, 0)
	}

	const clip = 1e-15
	sum := 0.0
	for i, key := range trueKeys {
		if key < 0 || key >= cols {
			return 0, errors.NewValueError("LogLoss", "class key out of range")
		}
		p := errors.ClipValue(proba.At(i, key), clip, 1-clip)
		sum -= math.Log(p)
	}
	return sum / float64(len(trueKeys)), nil
}

// String renders the report as a table followed by the aggregates.
func (r *Report) String() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "class\tprecision\trecall\tsupport\t")
	for _, m := range r.PerClass {
		fmt.Fprintf(w, "%s\t%.4f\t%.4f\t%d\t\n", m.Class, m.Precision, m.Recall, m.Support)
	}
	w.Flush()

	fmt.Fprintf(&sb, "micro accuracy: %.4f\n", r.MicroAccuracy)
	fmt.Fprintf(&sb, "macro accuracy: %.4f\n", r.MacroAccuracy)
	if r.LogLoss > 0 {
		fmt.Fprintf(&sb, "log loss:       %.4f\n", r.LogLoss)
	}
	return sb.String()
}

// Summary renders the confusion matrix with golearn's summary table.
func (r *Report) Summary() string {
	return evaluation.GetSummary(r.Confusion.Golearn())
}

// MarshalZerologObject adds the aggregates to a zerolog event.
func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("micro_accuracy", r.MicroAccuracy).
		Float64("macro_accuracy", r.MacroAccuracy).
		Float64("log_loss", r.LogLoss).
		Int("samples", r.Confusion.Total())
}
