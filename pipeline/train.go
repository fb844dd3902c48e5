package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/polishequity/analytics/dataset"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/pkg/telemetry"
	"github.com/polishequity/analytics/preprocessing"
	"github.com/polishequity/analytics/schema"
	"github.com/polishequity/analytics/sklearn/lightgbm"
)

// TrainedModel bundles everything needed to score raw records: the label
// vocabulary, the fitted preprocessor and the booster.
type TrainedModel struct {
	RunID        string
	Config       Config
	Labels       *preprocessing.LabelEncoder
	Preprocessor *preprocessing.FittedPreprocessor
	Booster      *lightgbm.Model

	// LossHistory is the training multi_logloss per iteration. It is not
	// persisted.
	LossHistory []float64

	predictor *lightgbm.Predictor
}

func newTrainedModel(runID string, cfg Config, labels *preprocessing.LabelEncoder,
	prep *preprocessing.FittedPreprocessor, booster *lightgbm.Model) *TrainedModel {
	predictor := lightgbm.NewPredictor(booster)
	predictor.SetNumThreads(cfg.NumThreads)
	return &TrainedModel{
		RunID:        runID,
		Config:       cfg,
		Labels:       labels,
		Preprocessor: prep,
		Booster:      booster,
		predictor:    predictor,
	}
}

// Train fits the label encoder, the preprocessor and the booster on the
// training view, in that order. Any error aborts before a model exists.
func Train(ctx context.Context, cfg Config, train *dataset.View) (*TrainedModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := log.GetLoggerWithName("pipeline").With(log.RunIDKey, runID)
	start := time.Now()

	records, err := dataset.Collect(train.Records())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.NewInsufficientDataError("Train", 0, 1)
	}

	labels := preprocessing.NewLabelEncoder()
	raw := make([]string, len(records))
	for i, r := range records {
		raw[i] = r.Label()
	}
	if err := labels.Fit(raw); err != nil {
		return nil, err
	}
	keys, err := labels.EncodeAll(raw)
	if err != nil {
		return nil, err
	}

	prep, err := preprocessing.NewPreprocessor().Fit(records)
	if err != nil {
		return nil, err
	}
	X := prep.TransformAll(records)
	telemetry.Observer.StageDuration("preprocess", time.Since(start).Seconds())

	logger.Info("Features prepared",
		log.SamplesKey, len(records),
		log.FeaturesKey, prep.Width(),
		log.ClassesKey, labels.NumClasses(),
	)

	var history map[string][]float64
	callbacks := []lightgbm.Callback{lightgbm.RecordEvaluation(&history)}
	if cfg.LogPeriod > 0 {
		callbacks = append(callbacks, lightgbm.LogEvaluation(cfg.LogPeriod))
	}
	trainer := lightgbm.NewTrainer(cfg.trainingParams(labels.NumClasses())).WithCallbacks(callbacks...)

	fitStart := time.Now()
	if err := trainer.FitMulticlass(ctx, X, keys, labels.NumClasses()); err != nil {
		return nil, errors.Wrap(err, "fit booster")
	}
	telemetry.Observer.StageDuration("train", time.Since(fitStart).Seconds())

	booster := trainer.GetModel()
	booster.FeatureNames = prep.FeatureNames()

	logger.Info("Model trained",
		log.TreesKey, len(booster.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	m := newTrainedModel(runID, cfg, labels, prep, booster)
	m.LossHistory = history["multi_logloss"]
	return m, nil
}

// Classes returns the class labels in key order.
func (m *TrainedModel) Classes() []string {
	return append([]string(nil), m.Labels.Classes...)
}

// Predict scores a single record.
func (m *TrainedModel) Predict(r schema.InputRecord) (schema.Prediction, error) {
	preds, err := m.PredictRecords(context.Background(), []schema.InputRecord{r})
	if err != nil {
		return schema.Prediction{}, err
	}
	return preds[0], nil
}

// PredictRecords scores every record. The true label is copied through
// as-is and need not be in the training vocabulary.
func (m *TrainedModel) PredictRecords(ctx context.Context, records []schema.InputRecord) ([]schema.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	proba, err := m.predictor.PredictProba(m.Preprocessor.TransformAll(records))
	if err != nil {
		return nil, err
	}

	preds := make([]schema.Prediction, len(records))
	for i, r := range records {
		score := append([]float64(nil), proba.RawRowView(i)...)
		label, err := m.Labels.Decode(lightgbm.Argmax(score))
		if err != nil {
			return nil, err
		}
		preds[i] = schema.Prediction{Label: r.Label(), PredictedLabel: label, Score: score}
	}
	return preds, nil
}

// PredictView scores every record of view.
func (m *TrainedModel) PredictView(ctx context.Context, view *dataset.View) ([]schema.Prediction, error) {
	records, err := dataset.Collect(view.Records())
	if err != nil {
		return nil, err
	}
	return m.PredictRecords(ctx, records)
}
