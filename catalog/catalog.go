// Package catalog は学習対象となる候補推定器の固定リストを定義します。
//
// リストの順序は意味を持ちます。同点スコアの場合、先に登録された候補が選ばれます。
package catalog

import (
	"sort"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/sklearn/ensemble"
	"github.com/YuminosukeSato/scitrain/sklearn/lightgbm"
	"github.com/YuminosukeSato/scitrain/sklearn/linear_model"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

// Candidate names in the default catalog.
const (
	RandomForest      = "Random Forest"
	DecisionTree      = "Decision Tree"
	GradientBoosting  = "Gradient Boosting"
	LinearRegression  = "Linear Regression"
	XGBRegressor      = "XGBRegressor"
	AdaBoostRegressor = "AdaBoost Regressor"
)

// Candidate describes one entry of the catalog. An empty SearchSpace means
// the estimator is fitted with its current hyperparameters.
type Candidate struct {
	Name        string
	Estimator   model.Estimator
	SearchSpace model.SearchSpace
}

func nEstimators() []interface{} {
	return []interface{}{8, 16, 32, 64, 128, 256}
}

// Default builds the standard six-candidate catalog. Every call returns
// fresh, unfitted estimators.
func Default() []Candidate {
	return []Candidate{
		{
			Name:      RandomForest,
			Estimator: ensemble.NewRandomForestRegressor(),
			SearchSpace: model.SearchSpace{
				"n_estimators": nEstimators(),
			},
		},
		{
			Name:      DecisionTree,
			Estimator: tree.NewDecisionTreeRegressor(),
			SearchSpace: model.SearchSpace{
				"criterion": {
					tree.CriterionSquaredError,
					tree.CriterionFriedmanMSE,
					tree.CriterionAbsoluteError,
					tree.CriterionPoisson,
				},
			},
		},
		{
			Name:      GradientBoosting,
			Estimator: ensemble.NewGradientBoostingRegressor(),
			SearchSpace: model.SearchSpace{
				"learning_rate": {.1, .01, .05, .001},
				"subsample":     {0.6, 0.7, 0.75, 0.8, 0.85, 0.9},
				"n_estimators":  nEstimators(),
			},
		},
		{
			Name:        LinearRegression,
			Estimator:   linear_model.NewLinearRegression(),
			SearchSpace: model.SearchSpace{},
		},
		{
			// 二次近似のブースティング枠は LightGBM 方式の実装で埋める
			Name:      XGBRegressor,
			Estimator: lightgbm.NewLGBMRegressor(),
			SearchSpace: model.SearchSpace{
				"learning_rate": {.1, .01, .05, .001},
				"n_estimators":  nEstimators(),
			},
		},
		{
			Name:      AdaBoostRegressor,
			Estimator: ensemble.NewAdaBoostRegressor(),
			SearchSpace: model.SearchSpace{
				"learning_rate": {.1, .01, 0.5, .001},
				"n_estimators":  nEstimators(),
			},
		},
	}
}

// Validate rejects duplicate names and search-space keys the estimator does
// not accept. Every value in the space is tried against a clone, so a bad
// catalog fails at startup rather than inside the grid search.
func Validate(candidates []Candidate) error {
	if len(candidates) == 0 {
		return errors.NewValidationError("catalog", "must contain at least one candidate", nil)
	}
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c.Name == "" {
			return errors.NewValidationError("catalog", "candidate name must not be empty", nil)
		}
		if _, dup := seen[c.Name]; dup {
			return errors.NewValidationError("catalog", "duplicate candidate name", c.Name)
		}
		seen[c.Name] = struct{}{}
		if c.Estimator == nil {
			return errors.NewValidationError("catalog", "candidate has no estimator", c.Name)
		}

		keys := make([]string, 0, len(c.SearchSpace))
		for k := range c.SearchSpace {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			values := c.SearchSpace[k]
			if len(values) == 0 {
				return errors.NewValidationError(k, "search space for "+c.Name+" has no values", nil)
			}
			trial := c.Estimator.Clone()
			for _, v := range values {
				if err := trial.SetParams(map[string]interface{}{k: v}); err != nil {
					return errors.Wrapf(err, "catalog: candidate %q", c.Name)
				}
			}
		}
	}
	return nil
}

// Names returns the candidate names in catalog order.
func Names(candidates []Candidate) []string {
	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = c.Name
	}
	return names
}
