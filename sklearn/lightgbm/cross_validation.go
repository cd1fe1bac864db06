package lightgbm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/metrics"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/model_selection"
)

// CVResult stores cross-validation results
type CVResult struct {
	Metric      string
	TrainScores []float64
	TestScores  []float64
	Models      []*Model
}

// GetMeanScore returns mean test score
func (cv *CVResult) GetMeanScore() float64 {
	if len(cv.TestScores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range cv.TestScores {
		sum += s
	}
	return sum / float64(len(cv.TestScores))
}

// GetStdScore returns the sample standard deviation of the test scores.
func (cv *CVResult) GetStdScore() float64 {
	if len(cv.TestScores) <= 1 {
		return 0
	}
	m := cv.GetMeanScore()
	var ss float64
	for _, s := range cv.TestScores {
		ss += (s - m) * (s - m)
	}
	return math.Sqrt(ss / float64(len(cv.TestScores)-1))
}

// defaultMetric は目的関数に対応する評価指標
func defaultMetric(objective string) string {
	if o, err := CreateObjectiveFunction(objective, 1); err == nil && o.Name() == "regression_l1" {
		return "l1"
	}
	return "l2"
}

// CrossValidate trains one model per fold of kf and scores it on the
// held-out rows. metric is one of l2, l1, rmse or r2; empty picks the
// objective's natural metric.
func CrossValidate(params TrainingParams, X, y mat.Matrix, kf *model_selection.KFold, metric string) (*CVResult, error) {
	if metric == "" {
		metric = defaultMetric(params.Objective)
	}
	if _, err := score(metric, nil, nil); err != nil {
		return nil, err
	}
	rows, _ := X.Dims()
	folds, err := kf.Split(rows)
	if err != nil {
		return nil, err
	}

	result := &CVResult{
		Metric:      metric,
		TrainScores: make([]float64, 0, kf.GetNSplits()),
		TestScores:  make([]float64, 0, kf.GetNSplits()),
		Models:      make([]*Model, 0, kf.GetNSplits()),
	}
	for i, fold := range folds {
		Xtr, ytr := model_selection.TakeRows(X, fold.TrainIndices), model_selection.TakeRows(y, fold.TrainIndices)
		Xte, yte := model_selection.TakeRows(X, fold.TestIndices), model_selection.TakeRows(y, fold.TestIndices)

		trainer := NewTrainer(params)
		if err := trainer.Fit(Xtr, ytr); err != nil {
			return nil, errors.Wrapf(err, "lightgbm: fold %d", i)
		}
		m := trainer.GetModel()

		trainScore, err := evaluate(metric, m, Xtr, ytr)
		if err != nil {
			return nil, err
		}
		testScore, err := evaluate(metric, m, Xte, yte)
		if err != nil {
			return nil, err
		}
		result.TrainScores = append(result.TrainScores, trainScore)
		result.TestScores = append(result.TestScores, testScore)
		result.Models = append(result.Models, m)
	}
	return result, nil
}

// CrossValidateRegressor runs CrossValidate with the regressor's hyperparameters.
func CrossValidateRegressor(reg *LGBMRegressor, X, y mat.Matrix, kf *model_selection.KFold, metric string) (*CVResult, error) {
	return CrossValidate(reg.trainingParams(), X, y, kf, metric)
}

func evaluate(metric string, m *Model, X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	return score(metric, mat.NewVecDense(n, model.Column(y, 0)), mat.NewVecDense(n, model.Column(pred, 0)))
}

// score computes metric; nil vectors only check the metric name.
func score(metric string, yTrue, yPred *mat.VecDense) (float64, error) {
	var fn func(a, b *mat.VecDense) (float64, error)
	switch metric {
	case "l2", "mse":
		fn = metrics.MSE
	case "l1", "mae":
		fn = metrics.MAE
	case "rmse":
		fn = metrics.RMSE
	case "r2":
		fn = metrics.R2Score
	default:
		return 0, errors.NewValidationError("metric", "unsupported metric", metric)
	}
	if yTrue == nil {
		return 0, nil
	}
	return fn(yTrue, yPred)
}
