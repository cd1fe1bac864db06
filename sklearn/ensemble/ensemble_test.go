package ensemble

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/metrics"
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

func r2(t *testing.T, est model.Estimator, X, y mat.Matrix) float64 {
	t.Helper()
	pred, err := est.Predict(X)
	require.NoError(t, err)
	score, err := metrics.R2ScoreMatrix(y, pred)
	require.NoError(t, err)
	return score
}

func TestEstimatorsFitTrainingData(t *testing.T) {
	X, y := lineData(30)
	tests := []struct {
		name string
		est  model.Estimator
	}{
		{"RandomForest", NewRandomForestRegressor(WithForestEstimators(20))},
		{"GradientBoosting", NewGradientBoostingRegressor()},
		{"AdaBoost", NewAdaBoostRegressor()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.est.Fit(X, y))
			assert.Greater(t, r2(t, tt.est, X, y), 0.8)
		})
	}
}

func TestRandomForestDeterministicAcrossWorkers(t *testing.T) {
	X, y := lineData(25)

	seq := NewRandomForestRegressor(WithForestEstimators(16), WithForestRandomState(7), WithForestNJobs(1))
	require.NoError(t, seq.Fit(X, y))
	par := NewRandomForestRegressor(WithForestEstimators(16), WithForestRandomState(7), WithForestNJobs(4))
	require.NoError(t, par.Fit(X, y))

	want, err := model.PredictVec(seq, X)
	require.NoError(t, err)
	got, err := model.PredictVec(par, X)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRandomForestWithoutBootstrapMatchesSingleTree(t *testing.T) {
	X, y := stepData()
	rf := NewRandomForestRegressor(WithForestEstimators(3), WithBootstrap(false))
	require.NoError(t, rf.Fit(X, y))
	pred, err := model.PredictVec(rf, X)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1, 5, 5, 5}, pred)
}

func TestGradientBoostingImprovesWithStages(t *testing.T) {
	X, y := lineData(30)

	few := NewGradientBoostingRegressor()
	require.NoError(t, few.SetParams(map[string]interface{}{"n_estimators": 2}))
	require.NoError(t, few.Fit(X, y))

	many := NewGradientBoostingRegressor()
	require.NoError(t, many.SetParams(map[string]interface{}{"n_estimators": 64}))
	require.NoError(t, many.Fit(X, y))

	assert.Greater(t, r2(t, many, X, y), r2(t, few, X, y))
}

func TestGradientBoostingSubsampleIsDeterministic(t *testing.T) {
	X, y := lineData(30)
	params := map[string]interface{}{"n_estimators": 16, "subsample": 0.6, "random_state": 3}

	a := NewGradientBoostingRegressor()
	require.NoError(t, a.SetParams(params))
	require.NoError(t, a.Fit(X, y))
	b := NewGradientBoostingRegressor()
	require.NoError(t, b.SetParams(params))
	require.NoError(t, b.Fit(X, y))

	pa, err := model.PredictVec(a, X)
	require.NoError(t, err)
	pb, err := model.PredictVec(b, X)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestGradientBoostingRejectsBadSubsample(t *testing.T) {
	X, y := stepData()
	gb := NewGradientBoostingRegressor()
	require.NoError(t, gb.SetParams(map[string]interface{}{"subsample": 1.5}))
	assert.Error(t, gb.Fit(X, y))
}

func TestAdaBoostStopsOnPerfectFit(t *testing.T) {
	X, y := stepData()
	ab := NewAdaBoostRegressor()
	require.NoError(t, ab.Fit(X, y))
	assert.LessOrEqual(t, len(ab.Trees), ab.NEstimators)
	assert.Len(t, ab.Weights, len(ab.Trees))
	assert.NotEmpty(t, ab.Trees)
}

func TestAdaBoostRejectsUnknownLoss(t *testing.T) {
	X, y := stepData()
	ab := NewAdaBoostRegressor()
	require.NoError(t, ab.SetParams(map[string]interface{}{"loss": "huber"}))
	assert.Error(t, ab.Fit(X, y))
}

func TestEnsembleParamsAndClone(t *testing.T) {
	tests := []struct {
		name   string
		est    model.Estimator
		params map[string]interface{}
	}{
		{"RandomForest", NewRandomForestRegressor(), map[string]interface{}{"n_estimators": 8}},
		{"GradientBoosting", NewGradientBoostingRegressor(), map[string]interface{}{"learning_rate": 0.05, "subsample": 0.8, "n_estimators": 16}},
		{"AdaBoost", NewAdaBoostRegressor(), map[string]interface{}{"learning_rate": 0.5, "n_estimators": 64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.est.SetParams(tt.params))
			got := tt.est.GetParams()
			for k, v := range tt.params {
				assert.Equal(t, v, got[k], k)
			}
			assert.Equal(t, got, tt.est.Clone().GetParams())
			assert.Error(t, tt.est.SetParams(map[string]interface{}{"no_such_param": 1}))
		})
	}
}

func TestEnsemblePersistence(t *testing.T) {
	X, y := lineData(20)
	tests := []struct {
		name     string
		est      model.Estimator
		restored model.Estimator
	}{
		{"RandomForest", NewRandomForestRegressor(WithForestEstimators(4)), &RandomForestRegressor{}},
		{"GradientBoosting", NewGradientBoostingRegressor(), &GradientBoostingRegressor{}},
		{"AdaBoost", NewAdaBoostRegressor(), &AdaBoostRegressor{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.est.Fit(X, y))
			var buf bytes.Buffer
			require.NoError(t, model.SaveModelToWriter(tt.est, &buf))
			require.NoError(t, model.LoadModelFromReader(tt.restored, &buf))

			want, err := model.PredictVec(tt.est, X)
			require.NoError(t, err)
			got, err := model.PredictVec(tt.restored, X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
