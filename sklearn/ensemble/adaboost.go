package ensemble

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

func init() {
	gob.Register(&AdaBoostRegressor{})
}

// Loss functions accepted by AdaBoostRegressor.
const (
	LossLinear      = "linear"
	LossSquare      = "square"
	LossExponential = "exponential"
)

// AdaBoostRegressor implements AdaBoost.R2 (Drucker, 1997) with depth 3
// regression trees as base learners.
//
// 各段で現在の標本重みに従って復元抽出した標本で木を学習し、全訓練データ上の
// 正規化損失の重み付き平均を推定器誤差とする。予測は推定器重みによる加重中央値。
type AdaBoostRegressor struct {
	State model.StateManager

	// Hyperparameters
	NEstimators  int
	LearningRate float64
	Loss         string
	MaxDepth     int
	RandomState  int

	// Learned parameters
	Trees   []tree.Nodes
	Weights []float64
}

// NewAdaBoostRegressor は scikit-learn の既定値で作成する
func NewAdaBoostRegressor() *AdaBoostRegressor {
	return &AdaBoostRegressor{
		NEstimators:  50,
		LearningRate: 1.0,
		Loss:         LossLinear,
		MaxDepth:     3,
	}
}

func (ab *AdaBoostRegressor) validate() error {
	if ab.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", ab.NEstimators)
	}
	if ab.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", ab.LearningRate)
	}
	switch ab.Loss {
	case LossLinear, LossSquare, LossExponential:
	default:
		return errors.NewValidationError("loss", "unsupported loss", ab.Loss)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (ab *AdaBoostRegressor) Fit(X, y mat.Matrix) error {
	if err := ab.validate(); err != nil {
		return err
	}
	ds, target, err := prepare("AdaBoostRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n := ds.NRows

	sampleWeight := make([]float64, n)
	for i := range sampleWeight {
		sampleWeight[i] = 1 / float64(n)
	}
	rng := newRand(ab.RandomState, 0)
	cdf := make([]float64, n)
	rows := make([]int, n)
	errVect := make([]float64, n)
	x := make([]float64, ds.NFeatures())

	var trees []tree.Nodes
	var weights []float64
	for m := 0; m < ab.NEstimators; m++ {
		// 重み付き復元抽出
		var acc float64
		for i, w := range sampleWeight {
			acc += w
			cdf[i] = acc
		}
		for k := range rows {
			j := sort.SearchFloat64s(cdf, rng.Float64()*acc)
			if j >= n {
				j = n - 1
			}
			rows[k] = j
		}

		dt := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(ab.MaxDepth))
		if err := dt.FitDataset(ds, target, rows); err != nil {
			return errors.Wrapf(err, "AdaBoostRegressor: stage %d", m)
		}

		var errMax float64
		for i := range errVect {
			errVect[i] = math.Abs(dt.Tree.PredictRow(ds.Row(i, x)) - target[i])
			if sampleWeight[i] > 0 && errVect[i] > errMax {
				errMax = errVect[i]
			}
		}
		if errMax != 0 {
			for i := range errVect {
				errVect[i] /= errMax
			}
		}
		switch ab.Loss {
		case LossSquare:
			for i, e := range errVect {
				errVect[i] = e * e
			}
		case LossExponential:
			for i, e := range errVect {
				errVect[i] = 1 - math.Exp(-e)
			}
		}
		var estErr float64
		for i, e := range errVect {
			estErr += sampleWeight[i] * e
		}

		if estErr <= 0 {
			// 完全に当てはまった推定器で打ち切る
			trees = append(trees, dt.Tree)
			weights = append(weights, 1)
			break
		}
		if estErr >= 0.5 {
			// 最初の推定器だけは残す（予測器が空にならないように）
			if len(trees) == 0 {
				trees = append(trees, dt.Tree)
				weights = append(weights, 1)
			}
			break
		}

		beta := estErr / (1 - estErr)
		trees = append(trees, dt.Tree)
		weights = append(weights, ab.LearningRate*math.Log(1/beta))

		if m == ab.NEstimators-1 {
			break
		}
		var sum float64
		for i := range sampleWeight {
			sampleWeight[i] *= math.Pow(beta, (1-errVect[i])*ab.LearningRate)
			sum += sampleWeight[i]
		}
		if sum <= 0 {
			break
		}
		for i := range sampleWeight {
			sampleWeight[i] /= sum
		}
	}

	ab.Trees = trees
	ab.Weights = weights
	ab.State.MarkFitted(ds.NFeatures(), n)
	return nil
}

// Predict は推定器重みによる加重中央値を返す
func (ab *AdaBoostRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := ab.State.RequireFitted("AdaBoostRegressor", "Predict", cols); err != nil {
		return nil, err
	}
	var total float64
	for _, w := range ab.Weights {
		total += w
	}
	k := len(ab.Trees)
	preds := make([]float64, k)
	idx := make([]int, k)
	return predictEach(X, func(x []float64) float64 {
		for j, t := range ab.Trees {
			preds[j] = t.PredictRow(x)
			idx[j] = j
		}
		sort.SliceStable(idx, func(a, b int) bool { return preds[idx[a]] < preds[idx[b]] })
		var acc float64
		for _, j := range idx {
			acc += ab.Weights[j]
			if acc >= 0.5*total {
				return preds[j]
			}
		}
		return preds[idx[k-1]]
	}), nil
}

// GetParams returns the model's hyperparameters.
func (ab *AdaBoostRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":  ab.NEstimators,
		"learning_rate": ab.LearningRate,
		"loss":          ab.Loss,
		"max_depth":     ab.MaxDepth,
		"random_state":  ab.RandomState,
	}
}

// SetParams sets the model's hyperparameters.
func (ab *AdaBoostRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			ab.NEstimators, err = model.ToInt(k, v)
		case "learning_rate":
			ab.LearningRate, err = model.ToFloat(k, v)
		case "loss":
			ab.Loss, err = model.ToString(k, v)
		case "max_depth":
			ab.MaxDepth, err = model.ToInt(k, v)
		case "random_state":
			ab.RandomState, err = model.ToInt(k, v)
		default:
			return model.UnknownParam("AdaBoostRegressor", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (ab *AdaBoostRegressor) Clone() model.Estimator {
	c := NewAdaBoostRegressor()
	_ = c.SetParams(ab.GetParams())
	return c
}

func (ab *AdaBoostRegressor) String() string {
	return fmt.Sprintf("AdaBoostRegressor(n_estimators=%d, learning_rate=%g, loss=%s)",
		ab.NEstimators, ab.LearningRate, ab.Loss)
}
