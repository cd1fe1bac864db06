package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

// offsetEstimator predicts the training mean plus Offset.
type offsetEstimator struct {
	Offset float64
	Mode   string
	mean   float64
}

func (e *offsetEstimator) Fit(_, y mat.Matrix) error {
	switch e.Mode {
	case "fail":
		return errors.New("boom")
	case "panic":
		panic("boom")
	}
	r, _ := y.Dims()
	e.mean = 0
	for i := 0; i < r; i++ {
		e.mean += y.At(i, 0)
	}
	e.mean /= float64(r)
	return nil
}

func (e *offsetEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, e.mean+e.Offset)
	}
	return out, nil
}

func (e *offsetEstimator) GetParams() map[string]interface{} {
	return map[string]interface{}{"offset": e.Offset, "mode": e.Mode}
}

func (e *offsetEstimator) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "offset":
			e.Offset, err = model.ToFloat(k, v)
		case "mode":
			e.Mode, err = model.ToString(k, v)
		default:
			return model.UnknownParam("offsetEstimator", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *offsetEstimator) Clone() model.Estimator {
	return &offsetEstimator{Offset: e.Offset, Mode: e.Mode}
}

func rangeData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 1, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y.Set(i, 0, float64(i))
	}
	return X, y
}

func captureWarnings(t *testing.T) *[]error {
	t.Helper()
	var warnings []error
	errors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	t.Cleanup(func() { errors.SetZerologWarnFunc(nil) })
	return &warnings
}

func TestKFoldContiguous(t *testing.T) {
	kf := NewKFold(3, false, 0)
	assert.Equal(t, 3, kf.GetNSplits())
	folds, err := kf.Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
}

func TestKFoldShuffleCoversAllIndices(t *testing.T) {
	folds, err := NewKFold(4, true, 42).Split(11)
	require.NoError(t, err)
	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 11-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	assert.Len(t, seen, 11)
	for i, c := range seen {
		assert.Equal(t, 1, c, "index %d", i)
	}

	again, err := NewKFold(4, true, 42).Split(11)
	require.NoError(t, err)
	assert.Equal(t, folds, again)
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(1, false, 0).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5, false, 0).Split(4)
	assert.Error(t, err)
}

func TestParameterGridOrder(t *testing.T) {
	grid := ParameterGrid(model.SearchSpace{
		"b": {1, 2},
		"a": {"x", "y"},
	})
	require.Len(t, grid, 4)
	assert.Equal(t, []map[string]interface{}{
		{"a": "x", "b": 1},
		{"a": "x", "b": 2},
		{"a": "y", "b": 1},
		{"a": "y", "b": 2},
	}, grid)

	assert.Nil(t, ParameterGrid(model.SearchSpace{}))
}

func TestGridSearchCVSelectsFirstBest(t *testing.T) {
	X, y := rangeData(9)
	est := &offsetEstimator{}
	gs := NewGridSearchCV(est, model.SearchSpace{"offset": {2.0, 0.0, -2.0, 0.0}}, WithNJobs(4))
	require.NoError(t, gs.Fit(context.Background(), X, y))

	require.Len(t, gs.CVResults, 4)
	assert.Equal(t, 1, gs.BestIndex)
	assert.Equal(t, 0.0, gs.BestParams["offset"])
	assert.Equal(t, gs.CVResults[1].MeanScore, gs.CVResults[3].MeanScore)
	assert.Equal(t, 0.0, est.Offset)
}

func TestGridSearchCVIndependentOfWorkers(t *testing.T) {
	X, y := rangeData(12)
	grid := model.SearchSpace{"criterion": {"squared_error", "friedman_mse", "absolute_error"}}

	seq := NewGridSearchCV(tree.NewDecisionTreeRegressor(), grid, WithNJobs(1))
	require.NoError(t, seq.Fit(context.Background(), X, y))
	par := NewGridSearchCV(tree.NewDecisionTreeRegressor(), grid, WithNJobs(8))
	require.NoError(t, par.Fit(context.Background(), X, y))

	assert.Equal(t, seq.CVResults, par.CVResults)
	assert.Equal(t, seq.BestIndex, par.BestIndex)
}

func TestGridSearchCVFailedFitsScoreNaN(t *testing.T) {
	warnings := captureWarnings(t)
	X, y := rangeData(9)
	est := &offsetEstimator{}
	gs := NewGridSearchCV(est, model.SearchSpace{"mode": {"fail", "panic", "ok"}}, WithName("offset"))
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.True(t, math.IsNaN(gs.CVResults[0].MeanScore))
	assert.True(t, math.IsNaN(gs.CVResults[1].MeanScore))
	assert.Equal(t, 2, gs.BestIndex)
	assert.Equal(t, "ok", est.Mode)

	require.Len(t, *warnings, 6)
	var w *errors.FitFailedWarning
	require.True(t, errors.As((*warnings)[0], &w))
	assert.Equal(t, "offset", w.Estimator)
}

func TestGridSearchCVAllFailed(t *testing.T) {
	captureWarnings(t)
	X, y := rangeData(9)
	est := &offsetEstimator{Mode: "before"}
	gs := NewGridSearchCV(est, model.SearchSpace{"mode": {"fail"}})
	err := gs.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.Equal(t, "before", est.Mode)
	assert.Equal(t, -1, gs.BestIndex)
}

func TestGridSearchCVEmptyGrid(t *testing.T) {
	X, y := rangeData(9)
	gs := NewGridSearchCV(&offsetEstimator{}, model.SearchSpace{})
	assert.Error(t, gs.Fit(context.Background(), X, y))
}

func TestGridSearchCVLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := rangeData(9)
	gs := NewGridSearchCV(&offsetEstimator{}, model.SearchSpace{"offset": {0.0, 1.0}},
		WithLogger(logger), WithName("offset"))
	require.NoError(t, gs.Fit(context.Background(), X, y))

	assert.True(t, logger.ContainsMessage("Grid search started"))
	assert.True(t, logger.ContainsMessage("Grid search finished"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "offset"))
}
