package ensemble

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

func init() {
	gob.Register(&GradientBoostingRegressor{})
}

// GradientBoostingRegressor は二乗誤差損失の勾配ブースティング
//
// 初期予測は y の平均。各段で残差に friedman_mse 基準の回帰木を当てはめ、
// LearningRate 倍して加算する。Subsample < 1 のときは段ごとに非復元抽出した
// int(Subsample*n) 行だけで木を学習する（確率的勾配ブースティング）。
type GradientBoostingRegressor struct {
	State model.StateManager

	// Hyperparameters
	NEstimators     int
	LearningRate    float64
	Subsample       float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	RandomState     int

	// Learned parameters
	Init  float64
	Trees []tree.Nodes
}

// NewGradientBoostingRegressor は既定値（scikit-learn と同じ）で作成する
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		NEstimators:     100,
		LearningRate:    0.1,
		Subsample:       1.0,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (gb *GradientBoostingRegressor) validate() error {
	if gb.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", gb.NEstimators)
	}
	if gb.LearningRate <= 0 {
		return errors.NewValidationError("learning_rate", "must be > 0", gb.LearningRate)
	}
	if gb.Subsample <= 0 || gb.Subsample > 1 {
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.Subsample)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	if err := gb.validate(); err != nil {
		return err
	}
	ds, target, err := prepare("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n := ds.NRows

	var init float64
	for _, v := range target {
		init += v
	}
	init /= float64(n)

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = init
	}
	residual := make([]float64, n)
	nSub := int(gb.Subsample * float64(n))
	if nSub < 1 {
		nSub = 1
	}
	rng := newRand(gb.RandomState, 0)
	x := make([]float64, ds.NFeatures())

	trees := make([]tree.Nodes, 0, gb.NEstimators)
	for m := 0; m < gb.NEstimators; m++ {
		for i := range residual {
			residual[i] = target[i] - pred[i]
		}
		rows := allRows(n)
		if nSub < n {
			rows = rng.Perm(n)[:nSub]
		}
		dt := tree.NewDecisionTreeRegressor(
			tree.WithCriterion(tree.CriterionFriedmanMSE),
			tree.WithMaxDepth(gb.MaxDepth),
			tree.WithMinSamplesSplit(gb.MinSamplesSplit),
			tree.WithMinSamplesLeaf(gb.MinSamplesLeaf),
		)
		if err := dt.FitDataset(ds, residual, rows); err != nil {
			return errors.Wrapf(err, "GradientBoostingRegressor: stage %d", m)
		}
		for i := range pred {
			pred[i] += gb.LearningRate * dt.Tree.PredictRow(ds.Row(i, x))
		}
		trees = append(trees, dt.Tree)
	}

	gb.Init = init
	gb.Trees = trees
	gb.State.MarkFitted(ds.NFeatures(), n)
	return nil
}

// Predict は入力データに対する予測を行う
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := gb.State.RequireFitted("GradientBoostingRegressor", "Predict", cols); err != nil {
		return nil, err
	}
	return predictEach(X, func(x []float64) float64 {
		p := gb.Init
		for _, t := range gb.Trees {
			p += gb.LearningRate * t.PredictRow(x)
		}
		return p
	}), nil
}

// GetParams returns the model's hyperparameters.
func (gb *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      gb.NEstimators,
		"learning_rate":     gb.LearningRate,
		"subsample":         gb.Subsample,
		"max_depth":         gb.MaxDepth,
		"min_samples_split": gb.MinSamplesSplit,
		"min_samples_leaf":  gb.MinSamplesLeaf,
		"random_state":      gb.RandomState,
	}
}

// SetParams sets the model's hyperparameters.
func (gb *GradientBoostingRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			gb.NEstimators, err = model.ToInt(k, v)
		case "learning_rate":
			gb.LearningRate, err = model.ToFloat(k, v)
		case "subsample":
			gb.Subsample, err = model.ToFloat(k, v)
		case "max_depth":
			gb.MaxDepth, err = model.ToInt(k, v)
		case "min_samples_split":
			gb.MinSamplesSplit, err = model.ToInt(k, v)
		case "min_samples_leaf":
			gb.MinSamplesLeaf, err = model.ToInt(k, v)
		case "random_state":
			gb.RandomState, err = model.ToInt(k, v)
		default:
			return model.UnknownParam("GradientBoostingRegressor", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (gb *GradientBoostingRegressor) Clone() model.Estimator {
	c := NewGradientBoostingRegressor()
	_ = c.SetParams(gb.GetParams())
	return c
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, subsample=%g, max_depth=%d)",
		gb.NEstimators, gb.LearningRate, gb.Subsample, gb.MaxDepth)
}
