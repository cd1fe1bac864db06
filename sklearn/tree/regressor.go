// Package tree は CART 回帰木を提供します。
//
// 学習済みの木はフラットな Nodes スライスとして保持され、gob でそのまま
// 永続化できます。アンサンブル（sklearn/ensemble）は Dataset と FitDataset を
// 使って、事前ソート済みの特徴量を多数の木で共有します。
package tree

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func init() {
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeRegressor is a CART regression tree.
type DecisionTreeRegressor struct {
	State model.StateManager

	// Hyperparameters
	Criterion       string
	MaxDepth        int // 0 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int

	// Learned parameters
	Tree Nodes
}

// DecisionTreeOption は設定オプション
type DecisionTreeOption func(*DecisionTreeRegressor)

// WithCriterion は分割基準を設定
func WithCriterion(c string) DecisionTreeOption {
	return func(t *DecisionTreeRegressor) { t.Criterion = c }
}

// WithMaxDepth は木の最大深さを設定（0 で無制限）
func WithMaxDepth(d int) DecisionTreeOption {
	return func(t *DecisionTreeRegressor) { t.MaxDepth = d }
}

// WithMinSamplesSplit は分割に必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) DecisionTreeOption {
	return func(t *DecisionTreeRegressor) { t.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉の最小サンプル数を設定
func WithMinSamplesLeaf(n int) DecisionTreeOption {
	return func(t *DecisionTreeRegressor) { t.MinSamplesLeaf = n }
}

// NewDecisionTreeRegressor は新しい回帰木を作成
func NewDecisionTreeRegressor(options ...DecisionTreeOption) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		Criterion:       CriterionSquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validate() (criterion, error) {
	crit, ok := newCriterion(t.Criterion)
	if !ok {
		return nil, errors.NewValidationError("criterion", "unsupported split criterion", t.Criterion)
	}
	if t.MaxDepth < 0 {
		return nil, errors.NewValidationError("max_depth", "must be >= 0", t.MaxDepth)
	}
	if t.MinSamplesSplit < 2 {
		return nil, errors.NewValidationError("min_samples_split", "must be >= 2", t.MinSamplesSplit)
	}
	if t.MinSamplesLeaf < 1 {
		return nil, errors.NewValidationError("min_samples_leaf", "must be >= 1", t.MinSamplesLeaf)
	}
	return crit, nil
}

// Fit はモデルを訓練データで学習
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	rows, _, err := model.CheckXy("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	target := make([]float64, rows)
	all := make([]int, rows)
	for i := range target {
		target[i] = y.At(i, 0)
		all[i] = i
	}
	return t.FitDataset(NewDataset(X), target, all)
}

// FitDataset grows the tree on the multiset rows of a presorted dataset.
// y is indexed by dataset row.
func (t *DecisionTreeRegressor) FitDataset(ds *Dataset, y []float64, rows []int) error {
	crit, err := t.validate()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "no samples", errors.ErrEmptyData)
	}
	if t.Criterion == CriterionPoisson {
		var sum float64
		for _, r := range rows {
			if y[r] < 0 {
				return errors.NewValueError("DecisionTreeRegressor.Fit", "poisson criterion requires y >= 0")
			}
			sum += y[r]
		}
		if sum <= 0 {
			return errors.NewValueError("DecisionTreeRegressor.Fit", "poisson criterion requires sum(y) > 0")
		}
	}

	b := &builder{
		ds:       ds,
		y:        y,
		crit:     crit,
		maxDepth: t.MaxDepth,
		minSplit: t.MinSamplesSplit,
		minLeaf:  t.MinSamplesLeaf,
		goLeft:   make([]bool, ds.NRows),
	}
	b.grow(ds.SampleLists(rows), 0)
	t.Tree = b.nodes
	t.State.MarkFitted(ds.NFeatures(), len(rows))
	return nil
}

type builder struct {
	ds       *Dataset
	y        []float64
	crit     criterion
	maxDepth int
	minSplit int
	minLeaf  int
	goLeft   []bool
	nodes    Nodes
}

// grow appends the subtree for lists and returns its root index.
func (b *builder) grow(lists [][]int, depth int) int {
	rows := lists[0]
	m := len(rows)
	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Leaf:     true,
		Value:    b.crit.leafValue(rows, b.y),
		NSamples: m,
	})

	if (b.maxDepth > 0 && depth >= b.maxDepth) || m < b.minSplit || m < 2*b.minLeaf || b.pure(rows) {
		return idx
	}

	bestFeature, bestPos, bestScore := -1, 0, math.Inf(-1)
	for f, order := range lists {
		pos, score, ok := b.crit.scan(order, b.ds.Cols[f], b.y, b.minLeaf)
		if ok && (bestFeature < 0 || score > bestScore) {
			bestFeature, bestPos, bestScore = f, pos, score
		}
	}
	if bestFeature < 0 {
		return idx
	}

	order := lists[bestFeature]
	col := b.ds.Cols[bestFeature]
	threshold := Midpoint(col[order[bestPos-1]], col[order[bestPos]])
	for _, r := range rows {
		b.goLeft[r] = col[r] <= threshold
	}
	left, right := PartitionLists(lists, b.goLeft, bestPos)

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = Node{
		Feature:   bestFeature,
		Threshold: threshold,
		Left:      l,
		Right:     r,
		Value:     b.nodes[idx].Value,
		NSamples:  m,
	}
	return idx
}

func (b *builder) pure(rows []int) bool {
	first := b.y[rows[0]]
	for _, r := range rows[1:] {
		if b.y[r] != first {
			return false
		}
	}
	return true
}

// Predict は入力データに対する予測を行う
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := t.State.RequireFitted("DecisionTreeRegressor", "Predict", cols); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		x = model.Row(X, i, x)
		out.Set(i, 0, t.Tree.PredictRow(x))
	}
	return out, nil
}

// GetParams returns the model's hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         t.Criterion,
		"max_depth":         t.MaxDepth,
		"min_samples_split": t.MinSamplesSplit,
		"min_samples_leaf":  t.MinSamplesLeaf,
	}
}

// SetParams sets the model's hyperparameters.
func (t *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			var c string
			if c, err = model.ToString(k, v); err == nil {
				if _, ok := newCriterion(c); !ok {
					return errors.NewValidationError(k, "unsupported split criterion", v)
				}
				t.Criterion = c
			}
		case "max_depth":
			t.MaxDepth, err = model.ToInt(k, v)
		case "min_samples_split":
			t.MinSamplesSplit, err = model.ToInt(k, v)
		case "min_samples_leaf":
			t.MinSamplesLeaf, err = model.ToInt(k, v)
		default:
			return model.UnknownParam("DecisionTreeRegressor", k, v)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (t *DecisionTreeRegressor) Clone() model.Estimator {
	return NewDecisionTreeRegressor(
		WithCriterion(t.Criterion),
		WithMaxDepth(t.MaxDepth),
		WithMinSamplesSplit(t.MinSamplesSplit),
		WithMinSamplesLeaf(t.MinSamplesLeaf),
	)
}

func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(criterion=%s, max_depth=%d, min_samples_split=%d, min_samples_leaf=%d)",
		t.Criterion, t.MaxDepth, t.MinSamplesSplit, t.MinSamplesLeaf)
}
