package orchestrator

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polishequity/analytics/config"
	"github.com/polishequity/analytics/dataset"
	"github.com/polishequity/analytics/pipeline"
	"github.com/polishequity/analytics/pkg/errors"
	"github.com/polishequity/analytics/schema"
	"github.com/polishequity/analytics/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDataset writes n labeled rows whose class follows net income.
func writeDataset(t *testing.T, path string, n int) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("NetIncome,NetCashFlow,Roe,Roa,Ebitda,Sector,Cumulation,InvestmentAssessment\n")
	sectors := []string{"Tech", "Retail", "Energy"}
	for i := 0; i < n; i++ {
		var income float64
		var label string
		switch i % 3 {
		case 0:
			income, label = 100+float64(i), "Good"
		case 1:
			income, label = float64(i%5), "Average"
		default:
			income, label = -100-float64(i), "Bad"
		}
		roe := fmt.Sprintf("%g", float64(i%7)/10)
		if i%10 == 9 {
			roe = "NA"
		}
		fmt.Fprintf(&sb, "%g,%d,%s,%g,%d,%s,%d,%s\n",
			income, i%13-6, roe, float64(i%5)/20, i%11, sectors[(i/3)%3], i%4, label)
	}
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths = config.PathsConfig{
		Data:           filepath.Join(dir, "Data", "initial_labeling_data.csv"),
		Model:          filepath.Join(dir, "Stacking", "Models", "model.zip"),
		Stacking:       filepath.Join(dir, "Stacking", "Data", "stacking_input.csv"),
		TrackingDB:     filepath.Join(dir, "runs.db"),
		MetricsFile:    filepath.Join(dir, "metrics", "finhealth.prom"),
		ImportancePlot: filepath.Join(dir, "charts", "importance.png"),
		LossPlot:       filepath.Join(dir, "charts", "loss.png"),
	}
	cfg.Training.NumIterations = 15
	cfg.Training.NumLeaves = 8
	cfg.Training.MinDataInLeaf = 3
	cfg.Training.LearningRate = 0.3
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Paths.Data), 0o755))
	return cfg
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRunEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg.Paths.Data, 150)

	res, err := Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 120, res.TrainRows)
	assert.Equal(t, 30, res.TestRows)
	assert.GreaterOrEqual(t, res.Report.MicroAccuracy, 0.9)
	require.NotEmpty(t, res.Importance)
	assert.Equal(t, schema.ColNetIncome, res.Importance[0].Feature)

	rows := readCSV(t, cfg.Paths.Stacking)
	require.Len(t, rows, 31)
	assert.Equal(t, []string{"Label", "Score.0", "Score.1", "Score.2"}, rows[0])

	model, err := pipeline.LoadFile(cfg.Paths.Model)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, model.RunID)

	for _, path := range []string{cfg.Paths.MetricsFile, cfg.Paths.ImportancePlot, cfg.Paths.LossPlot} {
		assert.FileExists(t, path)
	}

	store, err := tracking.Open(context.Background(), cfg.Paths.TrackingDB)
	require.NoError(t, err)
	defer store.Close()
	run, err := store.Get(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, tracking.StatusSucceeded, run.Status)
	assert.Equal(t, res.Report.MicroAccuracy, run.MicroAccuracy)
	assert.Equal(t, 120, run.TrainRows)
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testConfig(t)

	_, err := Run(context.Background(), cfg)
	var notFound *errors.DatasetNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.NoFileExists(t, cfg.Paths.Model)
	assert.NoFileExists(t, cfg.Paths.Stacking)

	store, err := tracking.Open(context.Background(), cfg.Paths.TrackingDB)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, tracking.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].Error, "dataset not found")
}

// relabelTestRow gives one held-out "Good" row a label that no training
// row carries.
func relabelTestRow(t *testing.T, cfg *config.Config, label string) {
	t.Helper()
	view, err := dataset.Load(cfg.Paths.Data)
	require.NoError(t, err)
	_, test, err := dataset.TrainTestSplit(view, cfg.Split.TestFraction, cfg.Split.Seed)
	require.NoError(t, err)
	records, err := dataset.Collect(test.Records())
	require.NoError(t, err)

	row := -1
	for _, r := range records {
		if r.Label() == "Good" {
			row = int(r.NetIncome) - 100
			break
		}
	}
	require.GreaterOrEqual(t, row, 0)

	data, err := os.ReadFile(cfg.Paths.Data)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	lines[row+1] = strings.TrimSuffix(lines[row+1], ",Good") + "," + label
	require.NoError(t, os.WriteFile(cfg.Paths.Data, []byte(strings.Join(lines, "\n")), 0o644))
}

func TestRunFailsWithoutModel(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, cfg *config.Config)
		check   func(t *testing.T, err error)
	}{
		{
			name: "invalid training config",
			prepare: func(t *testing.T, cfg *config.Config) {
				cfg.Training.NumLeaves = 1
			},
			check: func(t *testing.T, err error) {
				var ve *errors.ValidationError
				assert.True(t, errors.As(err, &ve))
			},
		},
		{
			name: "label only in held-out split",
			prepare: func(t *testing.T, cfg *config.Config) {
				relabelTestRow(t, cfg, "Distressed")
			},
			check: func(t *testing.T, err error) {
				var le *errors.LabelEncodingError
				require.True(t, errors.As(err, &le))
				assert.Equal(t, []string{"Distressed"}, le.Labels())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			writeDataset(t, cfg.Paths.Data, 150)
			tt.prepare(t, cfg)

			_, err := Run(context.Background(), cfg)
			require.Error(t, err)
			tt.check(t, err)
			assert.NoFileExists(t, cfg.Paths.Model)
			assert.NoFileExists(t, cfg.Paths.Stacking)

			store, err := tracking.Open(context.Background(), cfg.Paths.TrackingDB)
			require.NoError(t, err)
			defer store.Close()
			runs, err := store.List(context.Background(), 0)
			require.NoError(t, err)
			require.Len(t, runs, 1)
			assert.Equal(t, tracking.StatusFailed, runs[0].Status)
			assert.NotEmpty(t, runs[0].Error)
			assert.Zero(t, runs[0].TrainRows)
		})
	}
}

func TestRunSchemaMismatch(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg.Paths.Data, 30)
	f, err := os.OpenFile(cfg.Paths.Data, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("1,2,3\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	_, err = Run(context.Background(), cfg)
	var mismatch *errors.SchemaMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.NoFileExists(t, cfg.Paths.Model)
}

func TestPredictCommand(t *testing.T) {
	cfg := testConfig(t)
	writeDataset(t, cfg.Paths.Data, 90)
	_, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "out", "predictions.csv")
	n, err := Predict(context.Background(), cfg.Paths.Model, cfg.Paths.Data, out)
	require.NoError(t, err)
	assert.Equal(t, 90, n)

	rows := readCSV(t, out)
	require.Len(t, rows, 91)
	assert.Equal(t, []string{"Label", "PredictedLabel", "Score.0", "Score.1", "Score.2"}, rows[0])
	assert.Equal(t, "Good", rows[1][0])
}

func TestWriteStacking(t *testing.T) {
	var buf bytes.Buffer
	preds := []schema.Prediction{
		{Label: "Good", PredictedLabel: "Good", Score: []float64{0.5, 0.25, 0.25}},
		{Label: "Bad, really", PredictedLabel: "Bad", Score: []float64{0.1, 0.2, 0.7}},
	}
	require.NoError(t, WriteStacking(&buf, preds, 3))
	assert.Equal(t,
		"Label,Score.0,Score.1,Score.2\n"+
			"Good,0.5,0.25,0.25\n"+
			"\"Bad, really\",0.1,0.2,0.7\n",
		buf.String())

	buf.Reset()
	require.NoError(t, WritePredictions(&buf, preds[:1], 3))
	assert.Equal(t, "Label,PredictedLabel,Score.0,Score.1,Score.2\nGood,Good,0.5,0.25,0.25\n", buf.String())

	var dimErr *errors.DimensionError
	assert.True(t, errors.As(WriteStacking(&buf, preds, 2), &dimErr))
}
