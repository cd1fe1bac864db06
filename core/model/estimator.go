// Package model はscitrainの全推定器が満たす共通契約を定義します。
//
// モデル選択エンジンは具体的な型を知らずに、Estimator インターフェースだけを通して
// 候補モデルの学習・予測・ハイパーパラメータ設定を行います。
package model

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる。y は n×1 の列ベクトル。
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を n×1 の行列で返す
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator はカタログに登録される候補モデルの契約です。
type Estimator interface {
	Fitter
	Predictor

	// GetParams は現在のハイパーパラメータを返す
	GetParams() map[string]interface{}

	// SetParams はハイパーパラメータを設定する。未知のキーや不正な値はエラー。
	SetParams(params map[string]interface{}) error

	// Clone は同じハイパーパラメータを持つ未学習の新しいインスタンスを返す
	Clone() Estimator
}

// SearchSpace はハイパーパラメータ名から候補値（順序付き）へのマップです。
// 空の SearchSpace はグリッドサーチを行わないことを意味します。
type SearchSpace map[string][]interface{}

// Size はグリッドの組み合わせ総数を返す。空なら 0。
func (s SearchSpace) Size() int {
	if len(s) == 0 {
		return 0
	}
	n := 1
	for _, values := range s {
		n *= len(values)
	}
	return n
}

// CheckXy は Fit の入力を検証する。
// X が空、y の行数不一致、y が列ベクトルでない、非有限値を含む場合はエラー。
func CheckXy(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.NewValueError(op, "empty training data")
	}
	yRows, yCols := y.Dims()
	if yRows != rows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	if err := CheckFinite(op, X); err != nil {
		return 0, 0, err
	}
	if err := CheckFinite(op, y); err != nil {
		return 0, 0, err
	}
	return rows, cols, nil
}

// CheckFinite は行列に NaN や Inf が含まれていないことを確認する。
func CheckFinite(op string, m mat.Matrix) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError(op, "input contains NaN or infinity")
			}
		}
	}
	return nil
}

// Column は行列の第 j 列を新しいスライスとして返す。
func Column(m mat.Matrix, j int) []float64 {
	r, _ := m.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

// Row は行列の第 i 行を dst に書き込み、dst を返す。
func Row(m mat.Matrix, i int, dst []float64) []float64 {
	_, c := m.Dims()
	if cap(dst) < c {
		dst = make([]float64, c)
	}
	dst = dst[:c]
	for j := range dst {
		dst[j] = m.At(i, j)
	}
	return dst
}

// PredictVec は推定器の予測結果を 1 次元スライスとして返す。
func PredictVec(p Predictor, X mat.Matrix) ([]float64, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return nil, err
	}
	return Column(pred, 0), nil
}
