package pipeline

import (
	"context"
	"time"

	"github.com/polishequity/analytics/dataset"
	"github.com/polishequity/analytics/metrics"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/pkg/telemetry"
	"github.com/polishequity/analytics/sklearn/lightgbm"
)

// Evaluate scores the held-out view and compares predictions with the true
// labels. A true label outside the training vocabulary fails the whole call
// with a LabelEncodingError naming every such row.
func Evaluate(ctx context.Context, m *TrainedModel, view *dataset.View) (*metrics.Report, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, m.RunID, log.PhaseKey, log.PhaseTesting)

	records, err := dataset.Collect(view.Records())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewInsufficientDataError("Evaluate", 0, 1)
	}

	raw := make([]string, len(records))
	for i, r := range records {
		raw[i] = r.Label()
	}
	keys, err := m.Labels.EncodeAll(raw)
	if err != nil {
		var labelErr *errors.LabelEncodingError
		if errors.As(err, &labelErr) {
			telemetry.Observer.LabelFailures(labelErr.Count())
			logger.Error("Unknown labels in evaluation data", err)
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proba, err := m.predictor.PredictProba(m.Preprocessor.TransformAll(records))
	if err != nil {
		return nil, err
	}

	cm := metrics.NewConfusionMatrix(m.Classes())
	rows, _ := proba.Dims()
	for i := 0; i < rows; i++ {
		if err := cm.Add(keys[i], lightgbm.Argmax(proba.RawRowView(i))); err != nil {
			return nil, err
		}
	}

	report, err := metrics.Evaluate(cm)
	if err != nil {
		return nil, err
	}
	if report.LogLoss, err = metrics.LogLoss(keys, proba); err != nil {
		return nil, err
	}

	telemetry.Observer.Accuracy("micro", report.MicroAccuracy)
	telemetry.Observer.Accuracy("macro", report.MacroAccuracy)
	telemetry.Observer.StageDuration("evaluate", time.Since(start).Seconds())

	logger.Info("Model evaluated",
		log.SamplesKey, rows,
		log.AccuracyKey, report.MicroAccuracy,
		log.MacroAccuracyKey, report.MacroAccuracy,
		log.LossKey, report.LogLoss,
	)
	return report, nil
}
