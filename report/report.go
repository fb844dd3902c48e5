// Package report renders training diagnostics as PNG charts.
package report

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/polishequity/analytics/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Importance is one feature's share of the model's total importance.
type Importance struct {
	Feature string
	Value   float64
}

// RankImportance pairs names with values and sorts by decreasing value.
// Ties keep the feature order.
func RankImportance(names []string, values []float64) ([]Importance, error) {
	if len(names) != len(values) {
		return nil, errors.NewDimensionError("RankImportance", len(names), len(values), 1)
	}
	ranked := make([]Importance, len(names))
	for i := range names {
		ranked[i] = Importance{Feature: names[i], Value: values[i]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Value > ranked[j].Value })
	return ranked, nil
}

// FeatureImportanceChart writes a bar chart of the ranked importances.
func FeatureImportanceChart(path, title string, ranked []Importance) error {
	if len(ranked) == 0 {
		return errors.NewValueError("FeatureImportanceChart", "no features")
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Importance"
	p.Y.Min = 0

	values := make(plotter.Values, len(ranked))
	names := make([]string, len(ranked))
	for i, r := range ranked {
		values[i] = r.Value
		names[i] = r.Feature
	}
	bars, err := plotter.NewBarChart(values, vg.Points(14))
	if err != nil {
		return errors.Wrap(err, "build bar chart")
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1

	width := vg.Length(max(6, len(ranked)/2)) * vg.Inch
	return save(p, width, 4*vg.Inch, path)
}

// LossCurve writes the training loss per boosting iteration.
func LossCurve(path, title string, losses []float64) error {
	if len(losses) == 0 {
		return errors.NewValueError("LossCurve", "no losses")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "multi_logloss"

	pts := make(plotter.XYs, len(losses))
	for i, v := range losses {
		pts[i].X = float64(i + 1)
		pts[i].Y = v
	}
	if err := plotutil.AddLinePoints(p, "train", pts); err != nil {
		return errors.Wrap(err, "add loss line")
	}
	return save(p, 8*vg.Inch, 4*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create chart directory for %s", path)
	}
	if err := p.Save(w, h, path); err != nil {
		return errors.Wrapf(err, "save chart %s", path)
	}
	return nil
}
