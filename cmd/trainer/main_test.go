package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/polishequity/analytics/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, dir string) (dataPath, configPath string) {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("a,b,c,d,e,sector,cumulation,label\n")
	for i := 0; i < 60; i++ {
		label, income := "Good", 50+i
		if i%2 == 1 {
			label, income = "Bad", -50-i
		}
		fmt.Fprintf(&sb, "%d,1,0.1,0.2,3,Tech,%d,%s\n", income, i%4, label)
	}
	dataPath = filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(dataPath, []byte(sb.String()), 0o644))

	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(`
training:
  num_iterations: 5
  min_data_in_leaf: 3
logging:
  level: error
`), 0o644))
	return dataPath, configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestTrainAndPredictCommands(t *testing.T) {
	dir := t.TempDir()
	data, cfg := writeFixture(t, dir)
	model := filepath.Join(dir, "models", "model.zip")
	stacking := filepath.Join(dir, "stacking", "stacking_input.csv")

	out, err := execute(t, "--config", cfg, "--data", data, "--model", model, "--out", stacking)
	require.NoError(t, err)
	assert.Contains(t, out, "micro accuracy")
	assert.FileExists(t, model)
	assert.FileExists(t, stacking)

	preds := filepath.Join(dir, "preds.csv")
	out, err = execute(t, "predict", "--config", cfg, "--model", model, "--data", data, "--out", preds)
	require.NoError(t, err)
	assert.Contains(t, out, "scored 60 rows")
	assert.FileExists(t, preds)
}

func TestChartFlags(t *testing.T) {
	dir := t.TempDir()
	data, cfg := writeFixture(t, dir)
	importance := filepath.Join(dir, "charts", "importance.png")
	loss := filepath.Join(dir, "charts", "loss.png")

	_, err := execute(t, "--config", cfg, "--data", data,
		"--model", filepath.Join(dir, "model.zip"),
		"--out", filepath.Join(dir, "stacking.csv"),
		"--importance-plot", importance,
		"--loss-plot", loss)
	require.NoError(t, err)
	assert.FileExists(t, importance)
	assert.FileExists(t, loss)
}

func TestInvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	data, cfg := writeFixture(t, dir)

	_, err := execute(t, "--config", cfg, "--data", data, "--log-level", "loud")
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestPredictMissingModel(t *testing.T) {
	dir := t.TempDir()
	data, cfg := writeFixture(t, dir)

	_, err := execute(t, "predict", "--config", cfg, "--model", filepath.Join(dir, "absent.zip"), "--data", data)
	assert.Error(t, err)
}
