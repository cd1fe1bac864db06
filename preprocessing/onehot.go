package preprocessing

import (
	"sort"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// OneHotEncoder はカテゴリ列を 0/1 の指示変数に展開する
type OneHotEncoder struct {
	State model.StateManager

	// Categories は列ごとのカテゴリ（昇順）
	Categories [][]string

	// IgnoreUnknown が true の場合、未知のカテゴリは全て 0 の行になる。
	// false の場合は SchemaError を返す。
	IgnoreUnknown bool
}

// NewOneHotEncoder は新しいOneHotEncoderを作成する
func NewOneHotEncoder(ignoreUnknown bool) *OneHotEncoder {
	return &OneHotEncoder{IgnoreUnknown: ignoreUnknown}
}

// Fit は列ごとのカテゴリ集合を学習する
func (e *OneHotEncoder) Fit(rows [][]string) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return errors.NewModelError("OneHotEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	nCols := len(rows[0])
	e.Categories = make([][]string, nCols)
	for j := 0; j < nCols; j++ {
		seen := make(map[string]bool)
		for _, row := range rows {
			seen[row[j]] = true
		}
		cats := make([]string, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	e.State.MarkFitted(nCols, len(rows))
	return nil
}

// Width は出力列数を返す
func (e *OneHotEncoder) Width() int {
	w := 0
	for _, c := range e.Categories {
		w += len(c)
	}
	return w
}

// Transform は rows を指示変数の行列に変換する
func (e *OneHotEncoder) Transform(rows [][]string) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, errors.NewValueError("OneHotEncoder.Transform", "empty data")
	}
	if err := e.State.RequireFitted("OneHotEncoder", "Transform", len(rows[0])); err != nil {
		return nil, err
	}

	out := mat.NewDense(len(rows), e.Width(), nil)
	for i, row := range rows {
		offset := 0
		for j, cell := range row {
			cats := e.Categories[j]
			k := sort.SearchStrings(cats, cell)
			if k < len(cats) && cats[k] == cell {
				out.Set(i, offset+k, 1)
			} else if !e.IgnoreUnknown {
				return nil, errors.NewSchemaError("", "unknown category "+strconv.Quote(cell)+" in column "+strconv.Itoa(j))
			}
			offset += len(cats)
		}
	}
	return out, nil
}
