package lightgbm

import (
	"encoding/gob"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func init() {
	gob.Register(&LGBMRegressor{})
}

// LGBMRegressor is a LightGBM style gradient boosting regressor with
// scikit-learn parameter names.
type LGBMRegressor struct {
	State model.StateManager

	// Hyperparameters
	NumLeaves       int
	MaxDepth        int
	LearningRate    float64
	NumIterations   int
	MinChildSamples int
	MinChildWeight  float64
	MinSplitGain    float64
	Subsample       float64
	SubsampleFreq   int
	ColsampleBytree float64
	RegAlpha        float64
	RegLambda       float64
	RandomState     int
	Objective       string
	Alpha           float64 // huber の閾値

	// Learned model
	Model *Model
}

// NewLGBMRegressor は LightGBM の既定値で作成する
func NewLGBMRegressor() *LGBMRegressor {
	d := DefaultParams()
	return &LGBMRegressor{
		NumLeaves:       d.NumLeaves,
		MaxDepth:        d.MaxDepth,
		LearningRate:    d.LearningRate,
		NumIterations:   d.NumIterations,
		MinChildSamples: d.MinDataInLeaf,
		MinChildWeight:  d.MinSumHessianInLeaf,
		MinSplitGain:    d.MinGainToSplit,
		Subsample:       d.BaggingFraction,
		SubsampleFreq:   d.BaggingFreq,
		ColsampleBytree: d.FeatureFraction,
		RandomState:     d.Seed,
		Objective:       d.Objective,
		Alpha:           d.HuberDelta,
	}
}

// WithNumIterations sets the number of boosting rounds.
func (lgb *LGBMRegressor) WithNumIterations(n int) *LGBMRegressor {
	lgb.NumIterations = n
	return lgb
}

// WithLearningRate sets the shrinkage applied to every tree.
func (lgb *LGBMRegressor) WithLearningRate(rate float64) *LGBMRegressor {
	lgb.LearningRate = rate
	return lgb
}

// WithNumLeaves sets the maximum number of leaves per tree.
func (lgb *LGBMRegressor) WithNumLeaves(n int) *LGBMRegressor {
	lgb.NumLeaves = n
	return lgb
}

// WithMinChildSamples sets the minimum rows per leaf.
func (lgb *LGBMRegressor) WithMinChildSamples(n int) *LGBMRegressor {
	lgb.MinChildSamples = n
	return lgb
}

// WithObjective sets the objective (regression, regression_l1, huber).
func (lgb *LGBMRegressor) WithObjective(name string) *LGBMRegressor {
	lgb.Objective = name
	return lgb
}

func (lgb *LGBMRegressor) trainingParams() TrainingParams {
	return TrainingParams{
		NumIterations:       lgb.NumIterations,
		LearningRate:        lgb.LearningRate,
		NumLeaves:           lgb.NumLeaves,
		MaxDepth:            lgb.MaxDepth,
		MinDataInLeaf:       lgb.MinChildSamples,
		MinSumHessianInLeaf: lgb.MinChildWeight,
		MinGainToSplit:      lgb.MinSplitGain,
		Lambda:              lgb.RegLambda,
		Alpha:               lgb.RegAlpha,
		BaggingFraction:     lgb.Subsample,
		BaggingFreq:         lgb.SubsampleFreq,
		FeatureFraction:     lgb.ColsampleBytree,
		Objective:           lgb.Objective,
		HuberDelta:          lgb.Alpha,
		Seed:                lgb.RandomState,
	}
}

// Fit はモデルを訓練データで学習
func (lgb *LGBMRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LGBMRegressor.Fit")

	trainer := NewTrainer(lgb.trainingParams())
	if err := trainer.Fit(X, y); err != nil {
		return err
	}
	rows, cols := X.Dims()
	lgb.Model = trainer.GetModel()
	lgb.State.MarkFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lgb *LGBMRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	_, cols := X.Dims()
	if err := lgb.State.RequireFitted("LGBMRegressor", "Predict", cols); err != nil {
		return nil, err
	}
	pred, err := lgb.Model.Predict(X)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// GetParams returns the model's hyperparameters.
func (lgb *LGBMRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_leaves":        lgb.NumLeaves,
		"max_depth":         lgb.MaxDepth,
		"learning_rate":     lgb.LearningRate,
		"n_estimators":      lgb.NumIterations,
		"min_child_samples": lgb.MinChildSamples,
		"min_child_weight":  lgb.MinChildWeight,
		"min_split_gain":    lgb.MinSplitGain,
		"subsample":         lgb.Subsample,
		"subsample_freq":    lgb.SubsampleFreq,
		"colsample_bytree":  lgb.ColsampleBytree,
		"reg_alpha":         lgb.RegAlpha,
		"reg_lambda":        lgb.RegLambda,
		"random_state":      lgb.RandomState,
		"objective":         lgb.Objective,
		"alpha":             lgb.Alpha,
	}
}

// SetParams sets the model's hyperparameters. LightGBM の別名
// (num_iterations, n_leaves など) も受け付ける。
func (lgb *LGBMRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "num_leaves", "n_leaves":
			lgb.NumLeaves, err = model.ToInt(k, v)
		case "max_depth":
			lgb.MaxDepth, err = model.ToInt(k, v)
		case "learning_rate", "eta":
			lgb.LearningRate, err = model.ToFloat(k, v)
		case "n_estimators", "num_iterations":
			lgb.NumIterations, err = model.ToInt(k, v)
		case "min_child_samples", "min_data_in_leaf":
			lgb.MinChildSamples, err = model.ToInt(k, v)
		case "min_child_weight", "min_sum_hessian_in_leaf":
			lgb.MinChildWeight, err = model.ToFloat(k, v)
		case "min_split_gain", "min_gain_to_split":
			lgb.MinSplitGain, err = model.ToFloat(k, v)
		case "subsample", "bagging_fraction":
			lgb.Subsample, err = model.ToFloat(k, v)
		case "subsample_freq", "bagging_freq":
			lgb.SubsampleFreq, err = model.ToInt(k, v)
		case "colsample_bytree", "feature_fraction":
			lgb.ColsampleBytree, err = model.ToFloat(k, v)
		case "reg_alpha", "lambda_l1":
			lgb.RegAlpha, err = model.ToFloat(k, v)
		case "reg_lambda", "lambda_l2":
			lgb.RegLambda, err = model.ToFloat(k, v)
		case "random_state", "seed":
			lgb.RandomState, err = model.ToInt(k, v)
		case "objective":
			lgb.Objective, err = model.ToString(k, v)
		case "alpha":
			lgb.Alpha, err = model.ToFloat(k, v)
		default:
			return model.UnknownParam("LGBMRegressor", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (lgb *LGBMRegressor) Clone() model.Estimator {
	c := NewLGBMRegressor()
	_ = c.SetParams(lgb.GetParams())
	return c
}

func (lgb *LGBMRegressor) String() string {
	return fmt.Sprintf("LGBMRegressor(n_estimators=%d, learning_rate=%g, num_leaves=%d, objective=%s)",
		lgb.NumIterations, lgb.LearningRate, lgb.NumLeaves, lgb.Objective)
}
