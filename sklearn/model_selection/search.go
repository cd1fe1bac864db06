package model_selection

import (
	"context"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/parallel"
	"github.com/YuminosukeSato/scitrain/metrics"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
)

// Scorer scores predictions, larger is better.
type Scorer func(yTrue, yPred mat.Matrix) (float64, error)

// CVResult holds the cross-validation outcome of one parameter combination.
// A failed fold scores NaN, and so does the mean.
type CVResult struct {
	Params     map[string]interface{}
	FoldScores []float64
	MeanScore  float64
}

// GridSearchCV は全組み合わせを K 分割交差検証で評価し、平均スコアが最大の
// 組み合わせを選ぶ。
//
// (組み合わせ, フォールド) の各学習はワーカープール上で実行され、結果は
// 専用のスロットに書き込まれる。集約はプール終了後に行うため、結果は
// 完了順に依存しない。学習に失敗した（panic を含む）スロットは NaN となり
// FitFailedWarning が発行される。
type GridSearchCV struct {
	Name      string
	Estimator model.Estimator
	ParamGrid model.SearchSpace
	CV        *KFold
	NJobs     int
	Scoring   Scorer
	Logger    log.Logger

	// Results
	CVResults  []CVResult
	BestIndex  int
	BestParams map[string]interface{}
	BestScore  float64
}

// GridSearchOption は設定オプション
type GridSearchOption func(*GridSearchCV)

// WithCV は交差検証の分割器を設定
func WithCV(cv *KFold) GridSearchOption {
	return func(gs *GridSearchCV) { gs.CV = cv }
}

// WithNJobs は並列ワーカー数を設定（0 以下で全 CPU）
func WithNJobs(n int) GridSearchOption {
	return func(gs *GridSearchCV) { gs.NJobs = n }
}

// WithScoring はスコア関数を設定（既定は R²）
func WithScoring(s Scorer) GridSearchOption {
	return func(gs *GridSearchCV) { gs.Scoring = s }
}

// WithLogger はロガーを設定
func WithLogger(l log.Logger) GridSearchOption {
	return func(gs *GridSearchCV) { gs.Logger = l }
}

// WithName は警告とログに使う推定器名を設定
func WithName(name string) GridSearchOption {
	return func(gs *GridSearchCV) { gs.Name = name }
}

// NewGridSearchCV は 3 分割・シャッフルなし・R² の既定で作成する
func NewGridSearchCV(estimator model.Estimator, grid model.SearchSpace, options ...GridSearchOption) *GridSearchCV {
	gs := &GridSearchCV{
		Name:      fmt.Sprintf("%T", estimator),
		Estimator: estimator,
		ParamGrid: grid,
		CV:        NewKFold(3, false, 0),
		NJobs:     -1,
		Scoring:   metrics.R2ScoreMatrix,
		BestIndex: -1,
	}
	for _, opt := range options {
		opt(gs)
	}
	return gs
}

type foldData struct {
	trainX, trainY, testX, testY *mat.Dense
}

// Fit runs the search and applies the winning parameters to Estimator.
// It fails only when the grid is empty, the data cannot be split, or every
// combination failed.
func (gs *GridSearchCV) Fit(ctx context.Context, X, y mat.Matrix) error {
	combos := ParameterGrid(gs.ParamGrid)
	if len(combos) == 0 {
		return errors.NewValidationError("param_grid", "must contain at least one combination", gs.ParamGrid)
	}
	n, _ := X.Dims()
	folds, err := gs.CV.Split(n)
	if err != nil {
		return err
	}
	data := make([]foldData, len(folds))
	for i, f := range folds {
		data[i] = foldData{
			trainX: TakeRows(X, f.TrainIndices),
			trainY: TakeRows(y, f.TrainIndices),
			testX:  TakeRows(X, f.TestIndices),
			testY:  TakeRows(y, f.TestIndices),
		}
	}

	workers := parallel.Workers(gs.NJobs)
	nFolds := len(folds)
	if gs.Logger != nil {
		gs.Logger.Debug("Grid search started",
			log.ModelNameKey, gs.Name,
			log.CombinationsKey, len(combos),
			log.FoldsKey, nFolds,
			log.WorkersKey, workers,
		)
	}
	start := time.Now()

	scores := make([]float64, len(combos)*nFolds)
	parallel.ForEach(len(scores), workers, func(slot int) {
		c, f := slot/nFolds, slot%nFolds
		score, err := gs.fitAndScore(combos[c], data[f])
		if err != nil {
			errors.Warn(errors.NewFitFailedWarning(gs.Name, combos[c], f, err))
			score = math.NaN()
		}
		scores[slot] = score
	})

	results := make([]CVResult, len(combos))
	best := -1
	for c, params := range combos {
		fs := scores[c*nFolds : (c+1)*nFolds]
		var sum float64
		for _, s := range fs {
			sum += s
		}
		mean := sum / float64(nFolds)
		results[c] = CVResult{Params: params, FoldScores: append([]float64(nil), fs...), MeanScore: mean}
		if math.IsNaN(mean) {
			continue
		}
		if best < 0 || mean > results[best].MeanScore {
			best = c
		}
	}
	gs.CVResults = results
	if best < 0 {
		return errors.NewModelError("GridSearchCV.Fit", "all parameter combinations failed",
			errors.Newf("%s: %d fits failed", gs.Name, len(scores)))
	}

	if err := gs.Estimator.SetParams(combos[best]); err != nil {
		return errors.Wrap(err, "GridSearchCV: apply best params")
	}
	gs.BestIndex = best
	gs.BestParams = combos[best]
	gs.BestScore = results[best].MeanScore

	if gs.Logger != nil {
		gs.Logger.Info("Grid search finished",
			log.ModelNameKey, gs.Name,
			log.HyperParamsKey, gs.BestParams,
			log.R2ScoreKey, gs.BestScore,
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	}
	return nil
}

func (gs *GridSearchCV) fitAndScore(params map[string]interface{}, d foldData) (score float64, err error) {
	err = errors.SafeExecute("GridSearchCV.fit", func() error {
		est := gs.Estimator.Clone()
		if err := est.SetParams(params); err != nil {
			return err
		}
		if err := est.Fit(d.trainX, d.trainY); err != nil {
			return err
		}
		pred, err := est.Predict(d.testX)
		if err != nil {
			return err
		}
		score, err = gs.Scoring(d.testY, pred)
		return err
	})
	return score, err
}
