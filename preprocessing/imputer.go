package preprocessing

import (
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// ImputeStrategy は欠損値の補完方法
type ImputeStrategy string

const (
	// StrategyMedian は列の中央値で補完する（数値列）
	StrategyMedian ImputeStrategy = "median"
	// StrategyMostFrequent は最頻値で補完する。同数の場合は辞書順で最小の値
	StrategyMostFrequent ImputeStrategy = "most_frequent"
)

// missingFill は全て欠損しているカテゴリ列の補完値
const missingFill = "missing"

// SimpleImputer は列ごとの統計量で欠損セルを埋める
type SimpleImputer struct {
	State    model.StateManager
	Strategy ImputeStrategy

	// Statistics は列ごとの補完値（テキスト形式）
	Statistics []string
}

// NewSimpleImputer は新しいSimpleImputerを作成する
func NewSimpleImputer(strategy ImputeStrategy) *SimpleImputer {
	return &SimpleImputer{Strategy: strategy}
}

// Fit は rows（行 × 列のセル）から補完値を学習する
func (im *SimpleImputer) Fit(rows [][]string) error {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return errors.NewModelError("SimpleImputer.Fit", "empty data", errors.ErrEmptyData)
	}
	nCols := len(rows[0])
	im.Statistics = make([]string, nCols)

	for j := 0; j < nCols; j++ {
		switch im.Strategy {
		case StrategyMedian:
			vals := make([]float64, 0, len(rows))
			for i, row := range rows {
				if dataset.IsMissing(row[j]) {
					continue
				}
				v, err := strconv.ParseFloat(strings.TrimSpace(row[j]), 64)
				if err != nil {
					return errors.NewSchemaError("", "row "+strconv.Itoa(i)+": not numeric: "+strconv.Quote(row[j]))
				}
				vals = append(vals, v)
			}
			if len(vals) == 0 {
				return errors.NewValueError("SimpleImputer.Fit", "numeric column has no observed values")
			}
			im.Statistics[j] = strconv.FormatFloat(median(vals), 'g', -1, 64)
		case StrategyMostFrequent:
			im.Statistics[j] = mostFrequent(rows, j)
		default:
			return errors.NewValidationError("strategy", "unknown imputation strategy", string(im.Strategy))
		}
	}

	im.State.MarkFitted(nCols, len(rows))
	return nil
}

// Transform は欠損セルを補完した新しい rows を返す
func (im *SimpleImputer) Transform(rows [][]string) ([][]string, error) {
	width := im.State.NFeatures
	if len(rows) > 0 {
		width = len(rows[0])
	}
	if err := im.State.RequireFitted("SimpleImputer", "Transform", width); err != nil {
		return nil, err
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		r := make([]string, len(row))
		for j, cell := range row {
			if dataset.IsMissing(cell) {
				r[j] = im.Statistics[j]
			} else {
				r[j] = strings.TrimSpace(cell)
			}
		}
		out[i] = r
	}
	return out, nil
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func mostFrequent(rows [][]string, j int) string {
	counts := make(map[string]int)
	for _, row := range rows {
		if dataset.IsMissing(row[j]) {
			continue
		}
		counts[strings.TrimSpace(row[j])]++
	}
	if len(counts) == 0 {
		return missingFill
	}
	best, bestCount := "", -1
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
