package tree

// Node is one node of a fitted tree. Children are indices into the owning
// Nodes slice. Samples go left when x[Feature] <= Threshold.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
	NSamples  int
}

// Nodes is a fitted tree stored in depth-first order, root first.
type Nodes []Node

// PredictRow walks the tree for a single sample.
func (ns Nodes) PredictRow(x []float64) float64 {
	i := 0
	for !ns[i].Leaf {
		if x[ns[i].Feature] <= ns[i].Threshold {
			i = ns[i].Left
		} else {
			i = ns[i].Right
		}
	}
	return ns[i].Value
}

// Depth returns the maximum depth of the tree (a single leaf has depth 0).
func (ns Nodes) Depth() int {
	if len(ns) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		if ns[i].Leaf {
			return 0
		}
		return 1 + max(walk(ns[i].Left), walk(ns[i].Right))
	}
	return walk(0)
}

// Leaves counts the leaf nodes.
func (ns Nodes) Leaves() int {
	n := 0
	for _, nd := range ns {
		if nd.Leaf {
			n++
		}
	}
	return n
}
