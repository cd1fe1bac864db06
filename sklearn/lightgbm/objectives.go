package lightgbm

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// ObjectiveFunction supplies the per-sample derivatives boosting follows.
type ObjectiveFunction interface {
	// CalculateGradient returns dL/dpred for one sample
	CalculateGradient(prediction, target float64) float64

	// CalculateHessian returns d²L/dpred² for one sample
	CalculateHessian(prediction, target float64) float64

	// CalculateLoss returns the loss for one sample
	CalculateLoss(prediction, target float64) float64

	// GetInitScore returns the constant the ensemble starts from
	GetInitScore(targets []float64) float64

	Name() string
}

// L2Objective は二乗誤差
type L2Objective struct{}

func (L2Objective) CalculateGradient(prediction, target float64) float64 {
	return prediction - target
}

func (L2Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (L2Objective) CalculateLoss(prediction, target float64) float64 {
	d := prediction - target
	return 0.5 * d * d
}

func (L2Objective) GetInitScore(targets []float64) float64 {
	return mean(targets)
}

func (L2Objective) Name() string { return "regression" }

// leafRenewer is implemented by objectives whose leaf values are refit
// from the residuals after the tree structure is fixed.
type leafRenewer interface {
	RenewLeafOutput(residuals []float64) float64
}

// L1Objective は絶対誤差。ヘシアンは 1 で近似し、葉の値は残差の中央値で置き換える。
type L1Objective struct{}

func (L1Objective) CalculateGradient(prediction, target float64) float64 {
	switch {
	case prediction > target:
		return 1
	case prediction < target:
		return -1
	}
	return 0
}

func (L1Objective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (L1Objective) CalculateLoss(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

func (L1Objective) GetInitScore(targets []float64) float64 {
	return median(targets)
}

// RenewLeafOutput returns the median residual of the leaf.
func (L1Objective) RenewLeafOutput(residuals []float64) float64 {
	return median(residuals)
}

func (L1Objective) Name() string { return "regression_l1" }

// HuberObjective is quadratic within Delta of the target and linear outside.
type HuberObjective struct {
	Delta float64
}

func (o HuberObjective) CalculateGradient(prediction, target float64) float64 {
	d := prediction - target
	if math.Abs(d) <= o.Delta {
		return d
	}
	if d > 0 {
		return o.Delta
	}
	return -o.Delta
}

func (o HuberObjective) CalculateHessian(prediction, target float64) float64 {
	return 1.0
}

func (o HuberObjective) CalculateLoss(prediction, target float64) float64 {
	d := math.Abs(prediction - target)
	if d <= o.Delta {
		return 0.5 * d * d
	}
	return o.Delta * (d - 0.5*o.Delta)
}

func (o HuberObjective) GetInitScore(targets []float64) float64 {
	return mean(targets)
}

func (o HuberObjective) Name() string { return "huber" }

// CreateObjectiveFunction resolves an objective name, accepting LightGBM's aliases.
func CreateObjectiveFunction(name string, huberDelta float64) (ObjectiveFunction, error) {
	switch name {
	case "regression", "regression_l2", "l2", "mse", "mean_squared_error":
		return L2Objective{}, nil
	case "regression_l1", "l1", "mae", "mean_absolute_error":
		return L1Objective{}, nil
	case "huber":
		return HuberObjective{Delta: huberDelta}, nil
	}
	return nil, errors.NewValidationError("objective", "unsupported objective", name)
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func median(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := append([]float64(nil), v...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
