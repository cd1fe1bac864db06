package tree

import (
	"container/heap"
	"math"
	"sort"
)

// Split criteria accepted by DecisionTreeRegressor.
const (
	CriterionSquaredError  = "squared_error"
	CriterionFriedmanMSE   = "friedman_mse"
	CriterionAbsoluteError = "absolute_error"
	CriterionPoisson       = "poisson"
)

// poissonEpsilon guards log(0) for children whose target sum vanishes.
const poissonEpsilon = 1e-10

// criterion scores candidate splits of an ordered sample list.
// scan returns the best position i (left = order[:i]) and its proxy score,
// larger being better. ok is false when no admissible split exists.
type criterion interface {
	scan(order []int, x, y []float64, minLeaf int) (pos int, score float64, ok bool)
	leafValue(rows []int, y []float64) float64
}

func newCriterion(name string) (criterion, bool) {
	switch name {
	case CriterionSquaredError:
		return squaredError{}, true
	case CriterionFriedmanMSE:
		return friedmanMSE{}, true
	case CriterionAbsoluteError:
		return absoluteError{}, true
	case CriterionPoisson:
		return poisson{}, true
	}
	return nil, false
}

// prefixScan walks the admissible split positions in order and keeps the
// first one with the strictly highest proxy.
func prefixScan(order []int, x, y []float64, minLeaf int, proxy func(sumL float64, nL int, sumR float64, nR int) (float64, bool)) (int, float64, bool) {
	m := len(order)
	var total float64
	for _, r := range order {
		total += y[r]
	}
	bestPos, bestScore, found := 0, math.Inf(-1), false
	var sumL float64
	for i := 1; i < m; i++ {
		sumL += y[order[i-1]]
		if i < minLeaf || m-i < minLeaf {
			continue
		}
		if !Splittable(x[order[i-1]], x[order[i]]) {
			continue
		}
		score, ok := proxy(sumL, i, total-sumL, m-i)
		if !ok {
			continue
		}
		if !found || score > bestScore {
			bestPos, bestScore, found = i, score, true
		}
	}
	return bestPos, bestScore, found
}

func meanOf(rows []int, y []float64) float64 {
	var s float64
	for _, r := range rows {
		s += y[r]
	}
	return s / float64(len(rows))
}

type squaredError struct{}

func (squaredError) scan(order []int, x, y []float64, minLeaf int) (int, float64, bool) {
	return prefixScan(order, x, y, minLeaf, func(sumL float64, nL int, sumR float64, nR int) (float64, bool) {
		return sumL*sumL/float64(nL) + sumR*sumR/float64(nR), true
	})
}

func (squaredError) leafValue(rows []int, y []float64) float64 { return meanOf(rows, y) }

type friedmanMSE struct{}

func (friedmanMSE) scan(order []int, x, y []float64, minLeaf int) (int, float64, bool) {
	return prefixScan(order, x, y, minLeaf, func(sumL float64, nL int, sumR float64, nR int) (float64, bool) {
		diff := float64(nR)*sumL - float64(nL)*sumR
		return diff * diff / (float64(nL) * float64(nR)), true
	})
}

func (friedmanMSE) leafValue(rows []int, y []float64) float64 { return meanOf(rows, y) }

// poisson minimizes the half Poisson deviance. Splits leaving a child with
// a non-positive target sum are not admissible.
type poisson struct{}

func (poisson) scan(order []int, x, y []float64, minLeaf int) (int, float64, bool) {
	return prefixScan(order, x, y, minLeaf, func(sumL float64, nL int, sumR float64, nR int) (float64, bool) {
		if sumL <= poissonEpsilon || sumR <= poissonEpsilon {
			return 0, false
		}
		return sumL*math.Log(sumL/float64(nL)) + sumR*math.Log(sumR/float64(nR)), true
	})
}

func (poisson) leafValue(rows []int, y []float64) float64 { return meanOf(rows, y) }

// absoluteError minimizes the sum of absolute deviations from the child
// medians. Costs of every prefix and suffix are tracked with two heaps.
type absoluteError struct{}

func (absoluteError) scan(order []int, x, y []float64, minLeaf int) (int, float64, bool) {
	m := len(order)
	left := make([]float64, m+1) // left[i] = cost of order[:i]
	var t medianTracker
	for i := 1; i <= m; i++ {
		t.add(y[order[i-1]])
		left[i] = t.cost()
	}
	right := make([]float64, m+1) // right[i] = cost of order[i:]
	var u medianTracker
	for i := m - 1; i >= 0; i-- {
		u.add(y[order[i]])
		right[i] = u.cost()
	}

	bestPos, bestScore, found := 0, math.Inf(-1), false
	for i := 1; i < m; i++ {
		if i < minLeaf || m-i < minLeaf {
			continue
		}
		if !Splittable(x[order[i-1]], x[order[i]]) {
			continue
		}
		score := -(left[i] + right[i])
		if !found || score > bestScore {
			bestPos, bestScore, found = i, score, true
		}
	}
	return bestPos, bestScore, found
}

func (absoluteError) leafValue(rows []int, y []float64) float64 {
	vals := make([]float64, len(rows))
	for i, r := range rows {
		vals[i] = y[r]
	}
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// medianTracker keeps a running median with the lower half in a max-heap
// and the upper half in a min-heap.
type medianTracker struct {
	lo           maxHeap
	hi           minHeap
	sumLo, sumHi float64
}

func (t *medianTracker) add(v float64) {
	if t.lo.Len() == 0 || v <= t.lo.floatHeap[0] {
		heap.Push(&t.lo, v)
		t.sumLo += v
	} else {
		heap.Push(&t.hi, v)
		t.sumHi += v
	}
	if t.lo.Len() > t.hi.Len()+1 {
		moved := heap.Pop(&t.lo).(float64)
		t.sumLo -= moved
		heap.Push(&t.hi, moved)
		t.sumHi += moved
	} else if t.hi.Len() > t.lo.Len() {
		moved := heap.Pop(&t.hi).(float64)
		t.sumHi -= moved
		heap.Push(&t.lo, moved)
		t.sumLo += moved
	}
}

// cost returns the sum of absolute deviations from the median.
func (t *medianTracker) cost() float64 {
	med := t.lo.floatHeap[0]
	c := (med*float64(t.lo.Len()) - t.sumLo) + (t.sumHi - med*float64(t.hi.Len()))
	if c < 0 {
		return 0
	}
	return c
}

type floatHeap []float64

func (h floatHeap) Len() int      { return len(h) }
func (h floatHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *floatHeap) Push(x any)   { *h = append(*h, x.(float64)) }
func (h *floatHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

type minHeap struct{ floatHeap }

func (h minHeap) Less(i, j int) bool { return h.floatHeap[i] < h.floatHeap[j] }

type maxHeap struct{ floatHeap }

func (h maxHeap) Less(i, j int) bool { return h.floatHeap[i] > h.floatHeap[j] }
