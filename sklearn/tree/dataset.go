package tree

import (
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Dataset caches a column-major copy of a feature matrix together with the
// row order of every feature. Ensembles build it once and grow many trees
// on row subsets of it.
type Dataset struct {
	Cols  [][]float64 // Cols[f][row]
	Order [][]int     // Order[f] lists rows by ascending Cols[f], ties by row
	NRows int
}

// NewDataset presorts X.
func NewDataset(X mat.Matrix) *Dataset {
	r, c := X.Dims()
	ds := &Dataset{Cols: make([][]float64, c), Order: make([][]int, c), NRows: r}
	for f := 0; f < c; f++ {
		col := make([]float64, r)
		order := make([]int, r)
		for i := 0; i < r; i++ {
			col[i] = X.At(i, f)
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return col[order[a]] < col[order[b]] })
		ds.Cols[f] = col
		ds.Order[f] = order
	}
	return ds
}

// NFeatures returns the number of columns.
func (ds *Dataset) NFeatures() int { return len(ds.Cols) }

// Row copies row i into dst.
func (ds *Dataset) Row(i int, dst []float64) []float64 {
	if cap(dst) < len(ds.Cols) {
		dst = make([]float64, len(ds.Cols))
	}
	dst = dst[:len(ds.Cols)]
	for f, col := range ds.Cols {
		dst[f] = col[i]
	}
	return dst
}

// SampleLists returns, for every feature, the sample multiset rows ordered
// by that feature. A row drawn k times appears k times in a row.
func (ds *Dataset) SampleLists(rows []int) [][]int {
	counts := make([]int, ds.NRows)
	for _, r := range rows {
		counts[r]++
	}
	lists := make([][]int, len(ds.Cols))
	for f, order := range ds.Order {
		list := make([]int, 0, len(rows))
		for _, r := range order {
			for k := 0; k < counts[r]; k++ {
				list = append(list, r)
			}
		}
		lists[f] = list
	}
	return lists
}

// PartitionLists splits every ordered list by goLeft, keeping order.
func PartitionLists(lists [][]int, goLeft []bool, nLeft int) (left, right [][]int) {
	left = make([][]int, len(lists))
	right = make([][]int, len(lists))
	for f, list := range lists {
		l := make([]int, 0, nLeft)
		r := make([]int, 0, len(list)-nLeft)
		for _, row := range list {
			if goLeft[row] {
				l = append(l, row)
			} else {
				r = append(r, row)
			}
		}
		left[f], right[f] = l, r
	}
	return left, right
}

// featureThreshold is the minimal gap between two values for a split
// to be placed between them.
const featureThreshold = 1e-7

// Splittable reports whether a split may be placed between a and b (a <= b).
func Splittable(a, b float64) bool {
	return b > a+featureThreshold
}

// Midpoint returns the threshold between a and b, never equal to b.
func Midpoint(a, b float64) float64 {
	t := a/2 + b/2
	if t >= b {
		t = a
	}
	return t
}
