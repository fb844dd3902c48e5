package orchestrator

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/schema"
)

// WriteStacking writes the stacking input: the true label followed by one
// score column per class.
func WriteStacking(w io.Writer, preds []schema.Prediction, numClass int) error {
	header := append([]string{"Label"}, scoreColumns(numClass)...)
	return writeCSV(w, header, numClass, preds, func(p schema.Prediction) []string {
		return append([]string{p.Label}, formatScores(p.Score)...)
	})
}

// WritePredictions writes the true label, the predicted label and one score
// column per class.
func WritePredictions(w io.Writer, preds []schema.Prediction, numClass int) error {
	header := append([]string{"Label", "PredictedLabel"}, scoreColumns(numClass)...)
	return writeCSV(w, header, numClass, preds, func(p schema.Prediction) []string {
		return append([]string{p.Label, p.PredictedLabel}, formatScores(p.Score)...)
	})
}

// writeFile creates path and its parent directories and runs write on it.
func writeFile(path string, write func(io.Writer) error) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(f)
}

func writeCSV(w io.Writer, header []string, numClass int, preds []schema.Prediction, row func(schema.Prediction) []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for i, p := range preds {
		if len(p.Score) != numClass {
			return errors.NewDimensionError("writeCSV", numClass, len(p.Score), 1)
		}
		if err := cw.Write(row(p)); err != nil {
			return errors.Wrapf(err, "write row %d", i)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func scoreColumns(numClass int) []string {
	cols := make([]string, numClass)
	for k := range cols {
		cols[k] = "Score." + strconv.Itoa(k)
	}
	return cols
}

func formatScores(scores []float64) []string {
	out := make([]string, len(scores))
	for i, s := range scores {
		out[i] = strconv.FormatFloat(s, 'g', -1, 64)
	}
	return out
}
