package lightgbm

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/parallel"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// predictParallelThreshold 未満の行数では逐次に予測する
const predictParallelThreshold = 1000

// NodeType distinguishes leaves from split nodes.
type NodeType int

const (
	LeafNode NodeType = iota
	NumericalNode
)

// Node is one node of a tree. Children are indices into Tree.Nodes.
type Node struct {
	NodeType     NodeType
	SplitFeature int
	Threshold    float64
	Gain         float64
	LeftChild    int
	RightChild   int
	LeafValue    float64
	LeafCount    int
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.NodeType == LeafNode
}

// Tree is a single boosted tree. Leaf values are stored unshrunk.
type Tree struct {
	Nodes         []Node
	ShrinkageRate float64
}

// Predict returns the tree's contribution for one row.
func (t *Tree) Predict(x []float64) float64 {
	return t.walk(func(f int) float64 { return x[f] })
}

// walk follows splits from the root; feature(f) yields the row's value of f.
func (t *Tree) walk(feature func(f int) float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.IsLeaf() {
			return n.LeafValue * t.ShrinkageRate
		}
		if feature(n.SplitFeature) <= n.Threshold {
			i = n.LeftChild
		} else {
			i = n.RightChild
		}
	}
}

// NumLeaves returns the number of leaves.
func (t *Tree) NumLeaves() int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

// Model is a trained ensemble: InitScore plus the sum of every tree.
type Model struct {
	Objective   string
	NumFeatures int
	InitScore   float64
	Trees       []Tree
}

// PredictRow returns the raw prediction for one row.
func (m *Model) PredictRow(x []float64) float64 {
	p := m.InitScore
	for i := range m.Trees {
		p += m.Trees[i].Predict(x)
	}
	return p
}

// Predict returns an n×1 matrix of predictions.
func (m *Model) Predict(X mat.Matrix) (*mat.Dense, error) {
	rows, cols := X.Dims()
	if cols != m.NumFeatures {
		return nil, errors.NewDimensionError("lightgbm.Model.Predict", m.NumFeatures, cols, 1)
	}
	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		x := make([]float64, cols)
		for i := start; i < end; i++ {
			x = model.Row(X, i, x)
			out.Set(i, 0, m.PredictRow(x))
		}
	})
	return out, nil
}
