package report

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotModelReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "models.png")
	err := PlotModelReport(
		[]string{"Random Forest", "Linear Regression", "AdaBoost Regressor"},
		[]float64{0.81, -0.2, math.NaN()},
		path,
	)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestPlotPredictions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pred.svg")
	require.NoError(t, PlotPredictions([]float64{1, 2, 3}, []float64{1.1, 1.9, 3.2}, path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestPlotInputValidation(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, PlotModelReport(nil, nil, filepath.Join(dir, "a.png")))
	assert.Error(t, PlotModelReport([]string{"a"}, []float64{1, 2}, filepath.Join(dir, "b.png")))
	assert.Error(t, PlotPredictions([]float64{1}, nil, filepath.Join(dir, "c.png")))
}
