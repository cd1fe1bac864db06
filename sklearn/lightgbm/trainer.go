package lightgbm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
)

// Trainer grows trees leaf-wise: at every step the leaf with the largest
// split gain is split, until NumLeaves is reached or no leaf can be split.
type Trainer struct {
	params    TrainingParams
	objective ObjectiveFunction
	sampler   sampler

	// 列優先で保持した特徴量
	cols   [][]float64
	y      []float64
	nRows  int
	grad   []float64
	hess   []float64
	scores []float64

	initScore   float64
	trees       []Tree
	lossHistory []float64
}

// NewTrainer creates a trainer for params.
func NewTrainer(params TrainingParams) *Trainer {
	return &Trainer{
		params:  params,
		sampler: sampler{params: params},
	}
}

// splitInfo is the best split found for a leaf.
type splitInfo struct {
	feature   int
	threshold float64
	gain      float64
	valid     bool
}

// leafState is a leaf that may still be split.
type leafState struct {
	node  int
	rows  []int
	depth int
	best  splitInfo
}

// Fit runs NumIterations boosting rounds on X and y.
func (t *Trainer) Fit(X, y mat.Matrix) error {
	if err := t.params.validate(); err != nil {
		return err
	}
	obj, err := CreateObjectiveFunction(t.params.Objective, t.params.HuberDelta)
	if err != nil {
		return err
	}
	rows, cols, err := model.CheckXy("lightgbm.Trainer.Fit", X, y)
	if err != nil {
		return err
	}

	t.objective = obj
	t.nRows = rows
	t.cols = make([][]float64, cols)
	for j := range t.cols {
		t.cols[j] = model.Column(X, j)
	}
	t.y = model.Column(y, 0)
	t.grad = make([]float64, rows)
	t.hess = make([]float64, rows)
	t.initScore = obj.GetInitScore(t.y)
	t.scores = make([]float64, rows)
	for i := range t.scores {
		t.scores[i] = t.initScore
	}
	t.trees = make([]Tree, 0, t.params.NumIterations)
	t.lossHistory = t.lossHistory[:0]

	for iter := 0; iter < t.params.NumIterations; iter++ {
		for i := 0; i < rows; i++ {
			t.grad[i] = obj.CalculateGradient(t.scores[i], t.y[i])
			t.hess[i] = obj.CalculateHessian(t.scores[i], t.y[i])
		}
		tree := t.buildTree(iter)
		t.trees = append(t.trees, tree)

		// 予測値のキャッシュを新しい木の分だけ進める
		var loss float64
		for i := 0; i < rows; i++ {
			t.scores[i] += tree.walk(func(f int) float64 { return t.cols[f][i] })
			loss += obj.CalculateLoss(t.scores[i], t.y[i])
		}
		t.lossHistory = append(t.lossHistory, loss/float64(rows))
	}
	return nil
}

// GetModel returns the trained model.
func (t *Trainer) GetModel() *Model {
	name := ""
	if t.objective != nil {
		name = t.objective.Name()
	}
	return &Model{
		Objective:   name,
		NumFeatures: len(t.cols),
		InitScore:   t.initScore,
		Trees:       append([]Tree(nil), t.trees...),
	}
}

// LossHistory returns the mean training loss after each iteration.
func (t *Trainer) LossHistory() []float64 {
	return append([]float64(nil), t.lossHistory...)
}

func (t *Trainer) buildTree(iter int) Tree {
	rows := t.sampler.instances(t.nRows, iter)
	features := t.sampler.features(len(t.cols), iter)

	tree := Tree{ShrinkageRate: t.params.LearningRate}
	tree.Nodes = append(tree.Nodes, t.newLeaf(rows))
	open := []*leafState{{node: 0, rows: rows}}
	open[0].best = t.findBestSplit(rows, features, 0)

	for numLeaves := 1; numLeaves < t.params.NumLeaves; numLeaves++ {
		bi := -1
		for i, l := range open {
			if l.best.valid && (bi < 0 || l.best.gain > open[bi].best.gain) {
				bi = i
			}
		}
		if bi < 0 {
			break
		}

		l := open[bi]
		left, right := t.partition(l.rows, l.best)
		li := len(tree.Nodes)
		tree.Nodes = append(tree.Nodes, t.newLeaf(left), t.newLeaf(right))
		n := &tree.Nodes[l.node]
		n.NodeType = NumericalNode
		n.SplitFeature = l.best.feature
		n.Threshold = l.best.threshold
		n.Gain = l.best.gain
		n.LeftChild = li
		n.RightChild = li + 1

		ls := &leafState{node: li, rows: left, depth: l.depth + 1}
		rs := &leafState{node: li + 1, rows: right, depth: l.depth + 1}
		ls.best = t.findBestSplit(left, features, ls.depth)
		rs.best = t.findBestSplit(right, features, rs.depth)
		open[bi] = ls
		open = append(open, rs)
	}

	if r, ok := t.objective.(leafRenewer); ok {
		for _, l := range open {
			residuals := make([]float64, len(l.rows))
			for i, row := range l.rows {
				residuals[i] = t.y[row] - t.scores[row]
			}
			tree.Nodes[l.node].LeafValue = r.RenewLeafOutput(residuals)
		}
	}
	return tree
}

func (t *Trainer) newLeaf(rows []int) Node {
	g, h := t.sums(rows)
	return Node{
		NodeType:   LeafNode,
		LeftChild:  -1,
		RightChild: -1,
		LeafValue:  t.leafOutput(g, h),
		LeafCount:  len(rows),
	}
}

func (t *Trainer) sums(rows []int) (g, h float64) {
	for _, r := range rows {
		g += t.grad[r]
		h += t.hess[r]
	}
	return g, h
}

// thresholdL1 applies the L1 soft threshold to a gradient sum.
func (t *Trainer) thresholdL1(g float64) float64 {
	a := t.params.Alpha
	if a == 0 {
		return g
	}
	r := math.Max(math.Abs(g)-a, 0)
	if g < 0 {
		return -r
	}
	return r
}

// leafOutput: -T(G)/(H+λ)
func (t *Trainer) leafOutput(g, h float64) float64 {
	d := h + t.params.Lambda
	if d <= 0 {
		return 0
	}
	return -t.thresholdL1(g) / d
}

// leafScore: T(G)²/(H+λ)
func (t *Trainer) leafScore(g, h float64) float64 {
	d := h + t.params.Lambda
	if d <= 0 {
		return 0
	}
	tg := t.thresholdL1(g)
	return tg * tg / d
}

// findBestSplit scans every candidate feature with prefix sums over the
// rows sorted by that feature.
func (t *Trainer) findBestSplit(rows, features []int, depth int) splitInfo {
	p := t.params
	if p.MaxDepth > 0 && depth >= p.MaxDepth {
		return splitInfo{}
	}
	if len(rows) < 2*p.MinDataInLeaf {
		return splitInfo{}
	}

	G, H := t.sums(rows)
	parent := t.leafScore(G, H)
	best := splitInfo{gain: p.MinGainToSplit}
	order := make([]int, len(rows))
	for _, f := range features {
		col := t.cols[f]
		copy(order, rows)
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })

		var gl, hl float64
		for i := 0; i < len(order)-1; i++ {
			r := order[i]
			gl += t.grad[r]
			hl += t.hess[r]
			next := col[order[i+1]]
			if col[r] == next {
				continue
			}
			nl, nr := i+1, len(order)-i-1
			if nl < p.MinDataInLeaf || nr < p.MinDataInLeaf {
				continue
			}
			gr, hr := G-gl, H-hl
			if hl < p.MinSumHessianInLeaf || hr < p.MinSumHessianInLeaf {
				continue
			}
			gain := 0.5 * (t.leafScore(gl, hl) + t.leafScore(gr, hr) - parent)
			if gain > best.gain {
				best = splitInfo{
					feature:   f,
					threshold: midpoint(col[r], next),
					gain:      gain,
					valid:     true,
				}
			}
		}
	}
	return best
}

func (t *Trainer) partition(rows []int, s splitInfo) (left, right []int) {
	col := t.cols[s.feature]
	for _, r := range rows {
		if col[r] <= s.threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return left, right
}

// midpoint returns a threshold in [a, b) for a < b.
func midpoint(a, b float64) float64 {
	m := a + (b-a)/2
	if m >= b {
		return a
	}
	return m
}
