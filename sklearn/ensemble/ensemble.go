// Package ensemble は回帰木を束ねるアンサンブル推定器を提供します。
//
// すべての推定器は tree.Dataset を一度だけ構築し、各木はその行部分集合
// （ブートストラップ標本やサブサンプル）の上で成長します。乱数は
// RandomState と木の番号から PCG で決まるため、並列に学習しても結果は
// 決定的です。
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

// prepare validates the training input and presorts it.
func prepare(op string, X, y mat.Matrix) (*tree.Dataset, []float64, error) {
	_, _, err := model.CheckXy(op, X, y)
	if err != nil {
		return nil, nil, err
	}
	return tree.NewDataset(X), model.Column(y, 0), nil
}

// newRand returns the generator for member i of an ensemble.
func newRand(seed int, i int) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(i)))
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// predictEach evaluates fn on every row of X into an n×1 matrix.
func predictEach(X mat.Matrix, fn func(x []float64) float64) *mat.Dense {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	x := make([]float64, cols)
	for i := 0; i < rows; i++ {
		x = model.Row(X, i, x)
		out.Set(i, 0, fn(x))
	}
	return out
}
