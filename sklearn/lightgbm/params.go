package lightgbm

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// TrainingParams holds the parameters of a single training run.
type TrainingParams struct {
	NumIterations int
	LearningRate  float64
	NumLeaves     int
	MaxDepth      int // <= 0 は無制限

	MinDataInLeaf       int
	MinSumHessianInLeaf float64
	MinGainToSplit      float64

	// 正則化
	Lambda float64 // L2
	Alpha  float64 // L1

	// サンプリング
	BaggingFraction float64
	BaggingFreq     int
	FeatureFraction float64

	Objective  string
	HuberDelta float64
	Seed       int
}

// DefaultParams returns LightGBM's defaults for regression.
func DefaultParams() TrainingParams {
	return TrainingParams{
		NumIterations:       100,
		LearningRate:        0.1,
		NumLeaves:           31,
		MaxDepth:            -1,
		MinDataInLeaf:       20,
		MinSumHessianInLeaf: 1e-3,
		BaggingFraction:     1.0,
		FeatureFraction:     1.0,
		Objective:           "regression",
		HuberDelta:          0.9,
		Seed:                42,
	}
}

func (p TrainingParams) validate() error {
	switch {
	case p.NumIterations < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NumIterations)
	case p.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", p.LearningRate)
	case p.NumLeaves < 2:
		return errors.NewValidationError("num_leaves", "must be >= 2", p.NumLeaves)
	case p.MinDataInLeaf < 1:
		return errors.NewValidationError("min_child_samples", "must be >= 1", p.MinDataInLeaf)
	case p.MinSumHessianInLeaf < 0:
		return errors.NewValidationError("min_child_weight", "must be >= 0", p.MinSumHessianInLeaf)
	case p.Lambda < 0:
		return errors.NewValidationError("reg_lambda", "must be >= 0", p.Lambda)
	case p.Alpha < 0:
		return errors.NewValidationError("reg_alpha", "must be >= 0", p.Alpha)
	case p.BaggingFraction <= 0 || p.BaggingFraction > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", p.BaggingFraction)
	case p.FeatureFraction <= 0 || p.FeatureFraction > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", p.FeatureFraction)
	case p.HuberDelta <= 0:
		return errors.NewValidationError("alpha", "must be > 0", p.HuberDelta)
	}
	return nil
}

// sampler draws the rows and features each tree is grown on.
// 乱数は (Seed, 反復番号) から PCG で決まるので、同じ設定なら結果は再現する。
type sampler struct {
	params TrainingParams
}

// featureStream separates the feature draws from the row draws.
const featureStream = 0x9e3779b97f4a7c15

// instances returns the sorted rows used by iteration iter. The bag is
// redrawn every BaggingFreq iterations.
func (s sampler) instances(n, iter int) []int {
	p := s.params
	if p.BaggingFreq <= 0 || p.BaggingFraction >= 1 {
		return seq(n)
	}
	epoch := iter / p.BaggingFreq
	r := rand.New(rand.NewPCG(uint64(p.Seed), uint64(epoch)))
	return draw(r, n, p.BaggingFraction)
}

// features returns the sorted feature indices considered by iteration iter.
func (s sampler) features(n, iter int) []int {
	p := s.params
	if p.FeatureFraction >= 1 {
		return seq(n)
	}
	r := rand.New(rand.NewPCG(uint64(p.Seed)^featureStream, uint64(iter)))
	return draw(r, n, p.FeatureFraction)
}

// draw picks max(1, n*fraction) of 0..n-1 without replacement.
func draw(r *rand.Rand, n int, fraction float64) []int {
	k := int(float64(n) * fraction)
	if k < 1 {
		k = 1
	}
	idx := seq(n)
	for i := 0; i < k; i++ {
		j := i + r.IntN(n-i)
		idx[i], idx[j] = idx[j], idx[i]
	}
	idx = idx[:k]
	sort.Ints(idx)
	return idx
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
