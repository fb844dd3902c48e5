package report

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankImportance(t *testing.T) {
	ranked, err := RankImportance([]string{"a", "b", "c", "d"}, []float64{0.1, 0.5, 0.1, 0.3})
	require.NoError(t, err)
	assert.Equal(t, []Importance{
		{"b", 0.5},
		{"d", 0.3},
		{"a", 0.1},
		{"c", 0.1},
	}, ranked)

	_, err = RankImportance([]string{"a"}, nil)
	assert.Error(t, err)
}

func TestFeatureImportanceChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts", "importance.png")
	ranked, err := RankImportance([]string{"net_income", "roe"}, []float64{0.7, 0.3})
	require.NoError(t, err)

	require.NoError(t, FeatureImportanceChart(path, "Feature importance", ranked))
	assertPNG(t, path)

	assert.Error(t, FeatureImportanceChart(path, "empty", nil))
}

func TestLossCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.png")
	require.NoError(t, LossCurve(path, "Training loss", []float64{1.1, 0.9, 0.7}))
	assertPNG(t, path)

	assert.Error(t, LossCurve(path, "empty", nil))
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
