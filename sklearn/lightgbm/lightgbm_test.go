package lightgbm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/metrics"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/model_selection"
)

func stepData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 1, []float64{0, 1, 2, 3, 4, 5})
	y := mat.NewDense(6, 1, []float64{1, 1, 1, 5, 5, 5})
	return X, y
}

func lineData(n int) (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, 2*float64(i)+1)
	}
	return X, y
}

func singleRound(t *testing.T, lambda float64) []float64 {
	t.Helper()
	X, y := stepData()
	reg := NewLGBMRegressor()
	require.NoError(t, reg.SetParams(map[string]interface{}{
		"n_estimators":      1,
		"learning_rate":     1.0,
		"reg_lambda":        lambda,
		"min_child_samples": 1,
	}))
	require.NoError(t, reg.Fit(X, y))
	assert.InDelta(t, 3.0, reg.Model.InitScore, 1e-12)
	pred, err := model.PredictVec(reg, X)
	require.NoError(t, err)
	return pred
}

func TestSingleRoundExactFit(t *testing.T) {
	pred := singleRound(t, 0)
	for i, want := range []float64{1, 1, 1, 5, 5, 5} {
		assert.InDelta(t, want, pred[i], 1e-12)
	}
}

func TestRegularisationShrinksLeaves(t *testing.T) {
	pred := singleRound(t, 3)
	// leaf = -G/(H+λ) = -6/6 = -1
	assert.InDelta(t, 2.0, pred[0], 1e-12)
	assert.InDelta(t, 4.0, pred[5], 1e-12)
}

func TestL1RegularisationThresholdsGradient(t *testing.T) {
	X, y := stepData()
	reg := NewLGBMRegressor()
	require.NoError(t, reg.SetParams(map[string]interface{}{
		"n_estimators":      1,
		"learning_rate":     1.0,
		"reg_alpha":         3.0,
		"min_child_samples": 1,
	}))
	require.NoError(t, reg.Fit(X, y))
	pred, err := model.PredictVec(reg, X)
	require.NoError(t, err)
	// leaf = -sign(G)·max(|G|-α, 0)/H = -(6-3)/3
	assert.InDelta(t, 2.0, pred[0], 1e-12)
	assert.InDelta(t, 4.0, pred[5], 1e-12)
}

func TestL1RenewsLeavesWithMedianResidual(t *testing.T) {
	X, y := stepData()
	reg := NewLGBMRegressor().WithObjective("l1").WithMinChildSamples(1).WithNumIterations(1).WithLearningRate(1)
	require.NoError(t, reg.Fit(X, y))
	assert.Equal(t, "regression_l1", reg.Model.Objective)
	pred, err := model.PredictVec(reg, X)
	require.NoError(t, err)
	for i, want := range []float64{1, 1, 1, 5, 5, 5} {
		assert.InDelta(t, want, pred[i], 1e-12)
	}
}

func TestFitsTrainingData(t *testing.T) {
	X, y := lineData(30)
	tests := []struct {
		name      string
		objective string
	}{
		{"l2", "regression"},
		{"l1", "regression_l1"},
		{"huber", "huber"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewLGBMRegressor().WithMinChildSamples(3).WithObjective(tt.objective)
			if tt.objective == "huber" {
				require.NoError(t, reg.SetParams(map[string]interface{}{"alpha": 5.0}))
			}
			require.NoError(t, reg.Fit(X, y))
			pred, err := reg.Predict(X)
			require.NoError(t, err)
			score, err := metrics.R2ScoreMatrix(y, pred)
			require.NoError(t, err)
			assert.Greater(t, score, 0.8)
		})
	}
}

func TestNumLeavesBoundsTreeSize(t *testing.T) {
	X, y := lineData(40)
	reg := NewLGBMRegressor().WithMinChildSamples(1).WithNumLeaves(4).WithNumIterations(5)
	require.NoError(t, reg.Fit(X, y))
	require.Len(t, reg.Model.Trees, 5)
	for _, tree := range reg.Model.Trees {
		assert.LessOrEqual(t, tree.NumLeaves(), 4)
		assert.Equal(t, 2*tree.NumLeaves()-1, len(tree.Nodes))
	}
}

func TestMaxDepthLimitsGrowth(t *testing.T) {
	X, y := lineData(40)
	reg := NewLGBMRegressor().WithMinChildSamples(1).WithNumIterations(1)
	require.NoError(t, reg.SetParams(map[string]interface{}{"max_depth": 1}))
	require.NoError(t, reg.Fit(X, y))
	assert.Equal(t, 2, reg.Model.Trees[0].NumLeaves())
}

func TestTrainingLossDecreases(t *testing.T) {
	X, y := lineData(30)
	p := DefaultParams()
	p.NumIterations = 20
	p.MinDataInLeaf = 2
	p.Lambda = 1
	trainer := NewTrainer(p)
	require.NoError(t, trainer.Fit(X, y))

	hist := trainer.LossHistory()
	require.Len(t, hist, 20)
	for i := 1; i < len(hist); i++ {
		assert.LessOrEqual(t, hist[i], hist[i-1]+1e-12, "iteration %d", i)
	}
	assert.Equal(t, "regression", trainer.GetModel().Objective)
}

func TestBaggingIsDeterministic(t *testing.T) {
	X, y := lineData(30)
	fit := func() []float64 {
		reg := NewLGBMRegressor().WithMinChildSamples(2).WithNumIterations(10)
		require.NoError(t, reg.SetParams(map[string]interface{}{
			"subsample":        0.5,
			"subsample_freq":   1,
			"colsample_bytree": 0.5,
			"random_state":     7,
		}))
		require.NoError(t, reg.Fit(X, y))
		pred, err := model.PredictVec(reg, X)
		require.NoError(t, err)
		return pred
	}
	assert.Equal(t, fit(), fit())
}

func TestSampler(t *testing.T) {
	p := DefaultParams()
	p.BaggingFraction = 0.5
	p.BaggingFreq = 2
	p.FeatureFraction = 0.5
	s := sampler{params: p}

	rows := s.instances(10, 0)
	assert.Len(t, rows, 5)
	assert.IsIncreasing(t, rows)
	// 同じ epoch の反復は同じ bag を使う
	assert.Equal(t, rows, s.instances(10, 1))

	assert.Len(t, s.features(4, 0), 2)
	assert.Len(t, s.features(1, 0), 1)

	p.BaggingFreq = 0
	assert.Equal(t, seq(10), sampler{params: p}.instances(10, 3))
}

func TestInvalidParams(t *testing.T) {
	X, y := stepData()
	tests := []struct {
		name   string
		params map[string]interface{}
	}{
		{"num_leaves", map[string]interface{}{"num_leaves": 1}},
		{"learning_rate", map[string]interface{}{"learning_rate": 0.0}},
		{"subsample", map[string]interface{}{"subsample": 1.5}},
		{"objective", map[string]interface{}{"objective": "poisson"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewLGBMRegressor()
			require.NoError(t, reg.SetParams(tt.params))
			err := reg.Fit(X, y)
			require.Error(t, err)
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve))
			assert.False(t, reg.State.IsFitted())
		})
	}
}

func TestPredictRequiresFit(t *testing.T) {
	X, y := stepData()
	reg := NewLGBMRegressor()
	_, err := reg.Predict(X)
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))

	require.NoError(t, reg.WithMinChildSamples(1).Fit(X, y))
	_, err = reg.Predict(mat.NewDense(1, 2, nil))
	var de *errors.DimensionError
	assert.True(t, errors.As(err, &de))
}

func TestParamsAndClone(t *testing.T) {
	reg := NewLGBMRegressor()
	params := map[string]interface{}{"learning_rate": 0.01, "n_estimators": 32, "num_leaves": 15}
	require.NoError(t, reg.SetParams(params))
	got := reg.GetParams()
	for k, v := range params {
		assert.Equal(t, v, got[k], k)
	}
	assert.Equal(t, got, reg.Clone().GetParams())

	require.NoError(t, reg.SetParams(map[string]interface{}{"num_iterations": 64, "lambda_l2": 2.0}))
	assert.Equal(t, 64, reg.NumIterations)
	assert.Equal(t, 2.0, reg.RegLambda)

	assert.Error(t, reg.SetParams(map[string]interface{}{"no_such_param": 1}))
	assert.Error(t, reg.SetParams(map[string]interface{}{"n_estimators": 1.5}))
	assert.Error(t, reg.SetParams(map[string]interface{}{"objective": 3}))
}

func TestPersistence(t *testing.T) {
	X, y := lineData(20)
	reg := NewLGBMRegressor().WithMinChildSamples(2).WithNumIterations(10)
	require.NoError(t, reg.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(reg, &buf))
	restored := &LGBMRegressor{}
	require.NoError(t, model.LoadModelFromReader(restored, &buf))

	want, err := model.PredictVec(reg, X)
	require.NoError(t, err)
	got, err := model.PredictVec(restored, X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPredictLargeBatch(t *testing.T) {
	X, y := lineData(30)
	reg := NewLGBMRegressor().WithMinChildSamples(3).WithNumIterations(5)
	require.NoError(t, reg.Fit(X, y))

	n := predictParallelThreshold + 10
	big := mat.NewDense(n, 2, nil)
	for i := 0; i < n; i++ {
		big.Set(i, 0, float64(i%30))
		big.Set(i, 1, float64(i%3))
	}
	pred, err := model.PredictVec(reg, big)
	require.NoError(t, err)
	x := make([]float64, 2)
	for _, i := range []int{0, 29, n - 1} {
		assert.Equal(t, reg.Model.PredictRow(model.Row(big, i, x)), pred[i])
	}
}

func TestCrossValidate(t *testing.T) {
	X, y := lineData(30)
	p := DefaultParams()
	p.MinDataInLeaf = 2
	p.NumIterations = 30

	tests := []struct {
		name      string
		objective string
		metric    string
		want      string
	}{
		{"default l2", "regression", "", "l2"},
		{"default l1", "mae", "", "l1"},
		{"explicit r2", "regression", "r2", "r2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p.Objective = tt.objective
			res, err := CrossValidate(p, X, y, model_selection.NewKFold(3, true, 1), tt.metric)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Metric)
			assert.Len(t, res.TestScores, 3)
			assert.Len(t, res.TrainScores, 3)
			assert.Len(t, res.Models, 3)
			assert.GreaterOrEqual(t, res.GetStdScore(), 0.0)
		})
	}
}

func TestCrossValidateRegressorScoresWell(t *testing.T) {
	X, y := lineData(30)
	reg := NewLGBMRegressor().WithMinChildSamples(2)
	res, err := CrossValidateRegressor(reg, X, y, model_selection.NewKFold(5, true, 3), "r2")
	require.NoError(t, err)
	assert.Greater(t, res.GetMeanScore(), 0.8)
	assert.False(t, reg.State.IsFitted())
}

func TestCrossValidateErrors(t *testing.T) {
	X, y := lineData(10)
	_, err := CrossValidate(DefaultParams(), X, y, model_selection.NewKFold(3, false, 0), "auc")
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = CrossValidate(DefaultParams(), X, y, model_selection.NewKFold(20, false, 0), "")
	assert.Error(t, err)

	assert.Zero(t, (&CVResult{}).GetMeanScore())
	assert.Zero(t, (&CVResult{TestScores: []float64{1}}).GetStdScore())
}
