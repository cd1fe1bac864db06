package ensemble

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/parallel"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestRegressor{})
}

// RandomForestRegressor averages regression trees grown on bootstrap samples.
type RandomForestRegressor struct {
	State model.StateManager

	// Hyperparameters
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	RandomState     int
	NJobs           int

	// Learned parameters
	Trees []tree.Nodes
}

// ForestOption は設定オプション
type ForestOption func(*RandomForestRegressor)

// WithForestEstimators は木の本数を設定
func WithForestEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NEstimators = n }
}

// WithForestMaxDepth は各木の最大深さを設定（0 で無制限）
func WithForestMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.MaxDepth = d }
}

// WithForestRandomState は乱数シードを設定
func WithForestRandomState(seed int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.RandomState = seed }
}

// WithForestNJobs は並列ワーカー数を設定（0 以下で全 CPU）
func WithForestNJobs(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.NJobs = n }
}

// WithBootstrap はブートストラップ標本の使用有無を設定
func WithBootstrap(b bool) ForestOption {
	return func(rf *RandomForestRegressor) { rf.Bootstrap = b }
}

// NewRandomForestRegressor は新しいランダムフォレストを作成
func NewRandomForestRegressor(options ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		NJobs:           1,
	}
	for _, opt := range options {
		opt(rf)
	}
	return rf
}

func (rf *RandomForestRegressor) newTree() *tree.DecisionTreeRegressor {
	return tree.NewDecisionTreeRegressor(
		tree.WithMaxDepth(rf.MaxDepth),
		tree.WithMinSamplesSplit(rf.MinSamplesSplit),
		tree.WithMinSamplesLeaf(rf.MinSamplesLeaf),
	)
}

// Fit grows NEstimators trees on a worker pool. Tree i draws its bootstrap
// sample from its own generator, so the forest does not depend on NJobs.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if rf.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.NEstimators)
	}
	ds, target, err := prepare("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	n := ds.NRows

	trees := make([]tree.Nodes, rf.NEstimators)
	errs := make([]error, rf.NEstimators)
	parallel.ForEach(rf.NEstimators, parallel.Workers(rf.NJobs), func(i int) {
		rows := allRows(n)
		if rf.Bootstrap {
			rng := newRand(rf.RandomState, i)
			for k := range rows {
				rows[k] = rng.IntN(n)
			}
		}
		dt := rf.newTree()
		if errs[i] = dt.FitDataset(ds, target, rows); errs[i] == nil {
			trees[i] = dt.Tree
		}
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "RandomForestRegressor: tree %d", i)
		}
	}

	rf.Trees = trees
	rf.State.MarkFitted(ds.NFeatures(), n)
	return nil
}

// Predict は各木の予測の平均を返す
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict", cols); err != nil {
		return nil, err
	}
	return predictEach(X, func(x []float64) float64 {
		var sum float64
		for _, t := range rf.Trees {
			sum += t.PredictRow(x)
		}
		return sum / float64(len(rf.Trees))
	}), nil
}

// GetParams returns the model's hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.NEstimators,
		"max_depth":         rf.MaxDepth,
		"min_samples_split": rf.MinSamplesSplit,
		"min_samples_leaf":  rf.MinSamplesLeaf,
		"bootstrap":         rf.Bootstrap,
		"random_state":      rf.RandomState,
		"n_jobs":            rf.NJobs,
	}
}

// SetParams sets the model's hyperparameters.
func (rf *RandomForestRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			rf.NEstimators, err = model.ToInt(k, v)
		case "max_depth":
			rf.MaxDepth, err = model.ToInt(k, v)
		case "min_samples_split":
			rf.MinSamplesSplit, err = model.ToInt(k, v)
		case "min_samples_leaf":
			rf.MinSamplesLeaf, err = model.ToInt(k, v)
		case "random_state":
			rf.RandomState, err = model.ToInt(k, v)
		case "n_jobs":
			rf.NJobs, err = model.ToInt(k, v)
		case "bootstrap":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			rf.Bootstrap = b
		default:
			return model.UnknownParam("RandomForestRegressor", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (rf *RandomForestRegressor) Clone() model.Estimator {
	c := NewRandomForestRegressor()
	_ = c.SetParams(rf.GetParams())
	return c
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, random_state=%d)",
		rf.NEstimators, rf.MaxDepth, rf.RandomState)
}
