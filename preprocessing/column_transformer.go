package preprocessing

import (
	"encoding/gob"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func init() {
	gob.Register(&ColumnTransformer{})
}

// ColumnTransformer は特徴量フレームを数値行列に変換する前処理器です。
//
// 出力列の並び: 数値列（補完 → 標準化）の後にカテゴリ列
// （補完 → ワンホット → 平均を引かない標準化）。
// 学習後は gob でそのまま永続化できる。
type ColumnTransformer struct {
	State model.StateManager

	// Columns は学習時の入力列（元の順序）
	Columns     []string
	Numeric     []string
	Categorical []string

	NumImputer *SimpleImputer
	NumScaler  *StandardScaler
	CatImputer *SimpleImputer
	Encoder    *OneHotEncoder
	CatScaler  *StandardScaler
}

// NewColumnTransformer は未学習の ColumnTransformer を返す。
// 未知カテゴリは全 0 として扱う。
func NewColumnTransformer() *ColumnTransformer {
	return &ColumnTransformer{
		NumImputer: NewSimpleImputer(StrategyMedian),
		NumScaler:  NewStandardScaler(true, true),
		CatImputer: NewSimpleImputer(StrategyMostFrequent),
		Encoder:    NewOneHotEncoder(true),
		CatScaler:  NewStandardScaler(false, true),
	}
}

// InferColumnTypes は列を数値列とカテゴリ列に分類する。
// 欠損でないセルが1つ以上あり、その全てが数値として読める列を数値列とする。
func InferColumnTypes(f *dataset.Frame) (numeric, categorical []string) {
	for j, name := range f.Header {
		observed, parsed := 0, 0
		for _, row := range f.Rows {
			cell := row[j]
			if dataset.IsMissing(cell) {
				continue
			}
			observed++
			if _, err := strconv.ParseFloat(strings.TrimSpace(cell), 64); err == nil {
				parsed++
			}
		}
		if observed > 0 && parsed == observed {
			numeric = append(numeric, name)
		} else {
			categorical = append(categorical, name)
		}
	}
	return numeric, categorical
}

// Fit は特徴量フレームから前処理の統計量を学習する
func (ct *ColumnTransformer) Fit(f *dataset.Frame) error {
	_, err := ct.FitTransform(f)
	return err
}

// FitTransform は学習し、同じフレームを変換する
func (ct *ColumnTransformer) FitTransform(f *dataset.Frame) (*mat.Dense, error) {
	X, err := ct.fitTransform(f)
	return X, withSource(err, f.Source)
}

func (ct *ColumnTransformer) fitTransform(f *dataset.Frame) (*mat.Dense, error) {
	if f.Len() == 0 || len(f.Header) == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Fit", "empty data", errors.ErrEmptyData)
	}
	ct.Columns = append([]string(nil), f.Header...)
	ct.Numeric, ct.Categorical = InferColumnTypes(f)

	var blocks []*mat.Dense
	if len(ct.Numeric) > 0 {
		rows, err := selectColumns(f, ct.Numeric)
		if err != nil {
			return nil, err
		}
		if err := ct.NumImputer.Fit(rows); err != nil {
			return nil, err
		}
		X, err := ct.numericMatrix(rows)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.NumScaler.FitTransform(X)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}
	if len(ct.Categorical) > 0 {
		rows, err := selectColumns(f, ct.Categorical)
		if err != nil {
			return nil, err
		}
		if err := ct.CatImputer.Fit(rows); err != nil {
			return nil, err
		}
		filled, err := ct.CatImputer.Transform(rows)
		if err != nil {
			return nil, err
		}
		if err := ct.Encoder.Fit(filled); err != nil {
			return nil, err
		}
		encoded, err := ct.Encoder.Transform(filled)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.CatScaler.FitTransform(encoded)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}

	out := hstack(blocks)
	_, width := out.Dims()
	ct.State.MarkFitted(width, f.Len())
	return out, nil
}

// Transform は学習済みの統計量でフレームを変換する。
// 学習時の列は名前で探すため、列順が違っても余分な列があってもよい。
func (ct *ColumnTransformer) Transform(f *dataset.Frame) (*mat.Dense, error) {
	X, err := ct.transform(f)
	return X, withSource(err, f.Source)
}

func (ct *ColumnTransformer) transform(f *dataset.Frame) (*mat.Dense, error) {
	if !ct.State.IsFitted() {
		return nil, errors.NewNotFittedError("ColumnTransformer", "Transform")
	}
	if f.Len() == 0 {
		return nil, errors.NewValueError("ColumnTransformer.Transform", "empty data")
	}

	var blocks []*mat.Dense
	if len(ct.Numeric) > 0 {
		rows, err := selectColumns(f, ct.Numeric)
		if err != nil {
			return nil, err
		}
		X, err := ct.numericMatrix(rows)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.NumScaler.Transform(X)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}
	if len(ct.Categorical) > 0 {
		rows, err := selectColumns(f, ct.Categorical)
		if err != nil {
			return nil, err
		}
		filled, err := ct.CatImputer.Transform(rows)
		if err != nil {
			return nil, err
		}
		encoded, err := ct.Encoder.Transform(filled)
		if err != nil {
			return nil, err
		}
		scaled, err := ct.CatScaler.Transform(encoded)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, scaled)
	}
	return hstack(blocks), nil
}

// OutputWidth は変換後の列数を返す
func (ct *ColumnTransformer) OutputWidth() int {
	return ct.State.NFeatures
}

// InputColumns は学習時の入力列名を返す
func (ct *ColumnTransformer) InputColumns() []string {
	return append([]string(nil), ct.Columns...)
}

func (ct *ColumnTransformer) numericMatrix(rows [][]string) (*mat.Dense, error) {
	filled, err := ct.NumImputer.Transform(rows)
	if err != nil {
		return nil, err
	}
	X := mat.NewDense(len(filled), len(ct.Numeric), nil)
	for i, row := range filled {
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.NewSchemaError("", "column "+strconv.Quote(ct.Numeric[j])+" row "+strconv.Itoa(i)+": not numeric: "+strconv.Quote(cell))
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

func selectColumns(f *dataset.Frame, names []string) ([][]string, error) {
	idx := make([]int, len(names))
	for k, name := range names {
		idx[k] = f.Index(name)
		if idx[k] < 0 {
			return nil, errors.NewSchemaError(f.Source, "missing column "+strconv.Quote(name))
		}
	}
	rows := make([][]string, f.Len())
	for i, row := range f.Rows {
		r := make([]string, len(idx))
		for k, j := range idx {
			r[k] = row[j]
		}
		rows[i] = r
	}
	return rows, nil
}

// withSource attaches source to a SchemaError raised on bare rows by the
// imputers or the encoder.
func withSource(err error, source string) error {
	var schemaErr *errors.SchemaError
	if source != "" && errors.As(err, &schemaErr) && schemaErr.Source == "" {
		return errors.NewSchemaError(source, schemaErr.Reason)
	}
	return err
}

func hstack(blocks []*mat.Dense) *mat.Dense {
	if len(blocks) == 1 {
		return blocks[0]
	}
	rows, _ := blocks[0].Dims()
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out
}
