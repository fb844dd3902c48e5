// Package orchestrator runs the end-to-end training job: load, split, train,
// evaluate, persist and export stacking input for the downstream ensemble.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/polishequity/analytics/config"
	"github.com/polishequity/analytics/dataset"
	"github.com/polishequity/analytics/metrics"
	"github.com/polishequity/analytics/pipeline"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/polishequity/analytics/pkg/telemetry"
	"github.com/polishequity/analytics/report"
	"github.com/polishequity/analytics/tracking"
)

// Result summarises a successful run.
type Result struct {
	RunID        string
	Report       *metrics.Report
	Importance   []report.Importance
	TrainRows    int
	TestRows     int
	ModelPath    string
	StackingPath string
	Duration     time.Duration
}

// Run executes the training job described by cfg. Nothing is written to the
// model path unless training and evaluation succeed.
func Run(ctx context.Context, cfg *config.Config) (*Result, error) {
	start := time.Now()
	logger := log.GetLoggerWithName("orchestrator")

	res, runErr := run(ctx, cfg, logger)

	runID := uuid.NewString()
	if res != nil {
		runID = res.RunID
		res.Duration = time.Since(start)
	}
	if err := recordRun(ctx, cfg, runID, start, res, runErr); err != nil {
		logger.Warn("Run not recorded", log.ErrorKey, err.Error())
	}
	if cfg.Paths.MetricsFile != "" {
		if err := telemetry.Observer.WriteTextfile(cfg.Paths.MetricsFile); err != nil {
			logger.Warn("Metrics textfile not written", log.ErrorKey, err.Error(), log.PathKey, cfg.Paths.MetricsFile)
		}
	}

	if runErr != nil {
		logger.Error("Run failed", runErr, log.RunIDKey, runID)
		return nil, runErr
	}
	logger.Info("Run completed",
		log.RunIDKey, runID,
		log.AccuracyKey, res.Report.MicroAccuracy,
		log.MacroAccuracyKey, res.Report.MacroAccuracy,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return res, nil
}

func run(ctx context.Context, cfg *config.Config, logger log.Logger) (*Result, error) {
	view, err := dataset.Load(cfg.Paths.Data)
	if err != nil {
		return nil, err
	}
	train, test, err := dataset.TrainTestSplit(view, cfg.Split.TestFraction, cfg.Split.Seed)
	if err != nil {
		return nil, err
	}
	trainRows, err := train.Len()
	if err != nil {
		return nil, err
	}
	testRows, err := test.Len()
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset split",
		log.PathKey, cfg.Paths.Data,
		"train_rows", trainRows,
		"test_rows", testRows,
		log.RandomSeedKey, cfg.Split.Seed,
	)

	model, err := pipeline.Train(ctx, cfg.Training, train)
	if err != nil {
		return nil, err
	}
	rep, err := pipeline.Evaluate(ctx, model, test)
	if err != nil {
		return nil, err
	}

	if err := model.SaveFile(cfg.Paths.Model); err != nil {
		return nil, err
	}

	preds, err := model.PredictView(ctx, test)
	if err != nil {
		return nil, err
	}
	numClass := len(model.Classes())
	if err := writeFile(cfg.Paths.Stacking, func(w io.Writer) error {
		return WriteStacking(w, preds, numClass)
	}); err != nil {
		return nil, err
	}
	logger.Info("Stacking input written", log.PathKey, cfg.Paths.Stacking, log.SamplesKey, len(preds))

	ranked, err := report.RankImportance(model.Booster.FeatureNames, model.Booster.GetFeatureImportance("gain"))
	if err != nil {
		return nil, err
	}
	logger.Info("Feature importance", log.FeatureImportanceKey, topImportance(ranked, 5))
	writeCharts(cfg, model, ranked, logger)

	return &Result{
		RunID:        model.RunID,
		Report:       rep,
		Importance:   ranked,
		TrainRows:    trainRows,
		TestRows:     testRows,
		ModelPath:    cfg.Paths.Model,
		StackingPath: cfg.Paths.Stacking,
	}, nil
}

// writeCharts renders the optional charts. Failures are logged, not fatal.
func writeCharts(cfg *config.Config, model *pipeline.TrainedModel, ranked []report.Importance, logger log.Logger) {
	if path := cfg.Paths.ImportancePlot; path != "" {
		if err := report.FeatureImportanceChart(path, "Feature importance (gain)", ranked); err != nil {
			logger.Warn("Importance chart not written", log.ErrorKey, err.Error(), log.PathKey, path)
		}
	}
	if path := cfg.Paths.LossPlot; path != "" {
		if err := report.LossCurve(path, "Training loss", model.LossHistory); err != nil {
			logger.Warn("Loss chart not written", log.ErrorKey, err.Error(), log.PathKey, path)
		}
	}
}

func topImportance(ranked []report.Importance, n int) []string {
	out := make([]string, 0, min(n, len(ranked)))
	for _, r := range ranked[:min(n, len(ranked))] {
		out = append(out, fmt.Sprintf("%s=%.4f", r.Feature, r.Value))
	}
	return out
}

func recordRun(ctx context.Context, cfg *config.Config, runID string, start time.Time, res *Result, runErr error) error {
	if cfg.Paths.TrackingDB == "" {
		return nil
	}
	store, err := tracking.Open(ctx, cfg.Paths.TrackingDB)
	if err != nil {
		return err
	}
	defer store.Close()

	r := tracking.Run{
		ID:         runID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Status:     tracking.StatusSucceeded,
		Seed:       cfg.Split.Seed,
	}
	if runErr != nil {
		r.Status = tracking.StatusFailed
		r.Error = runErr.Error()
	}
	if res != nil {
		r.TrainRows = res.TrainRows
		r.TestRows = res.TestRows
		r.MicroAccuracy = res.Report.MicroAccuracy
		r.MacroAccuracy = res.Report.MacroAccuracy
		r.LogLoss = res.Report.LogLoss
		r.ModelPath = res.ModelPath
	}
	return errors.WithStack(store.Record(ctx, r))
}

// Predict scores the CSV at dataPath with the bundle at modelPath and writes
// a predictions CSV to outPath. It returns the number of rows scored.
func Predict(ctx context.Context, modelPath, dataPath, outPath string) (int, error) {
	model, err := pipeline.LoadFile(modelPath)
	if err != nil {
		return 0, err
	}
	view, err := dataset.Load(dataPath)
	if err != nil {
		return 0, err
	}
	preds, err := model.PredictView(ctx, view)
	if err != nil {
		return 0, err
	}
	numClass := len(model.Classes())
	if err := writeFile(outPath, func(w io.Writer) error {
		return WritePredictions(w, preds, numClass)
	}); err != nil {
		return 0, err
	}
	log.GetLoggerWithName("orchestrator").Info("Predictions written",
		log.PathKey, outPath,
		log.SamplesKey, len(preds),
		log.RunIDKey, model.RunID,
	)
	return len(preds), nil
}
