package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// classCounts はクラスごとの TP / 予測数 / サポート（真のラベル数）を保持する
type classCounts struct {
	tp, predicted, support int
}

func countClasses(yTrue, yPred *mat.VecDense, n int) ([]float64, map[float64]*classCounts) {
	counts := make(map[float64]*classCounts)
	get := func(label float64) *classCounts {
		c, ok := counts[label]
		if !ok {
			c = &classCounts{}
			counts[label] = c
		}
		return c
	}
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i), yPred.AtVec(i)
		get(t).support++
		get(p).predicted++
		if t == p {
			get(t).tp++
		}
	}
	labels := make([]float64, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Float64s(labels)
	return labels, counts
}

// WeightedScores はサポートで重み付けした適合率・再現率・F1を計算する。
//
// 予測が一つもないクラスの適合率は 0 とし、UndefinedMetricWarning を発生させる。
func WeightedScores(yTrue, yPred *mat.VecDense) (precision, recall, f1 float64, err error) {
	n, err := checkPair("WeightedScores", yTrue, yPred)
	if err != nil {
		return 0, 0, 0, err
	}
	labels, counts := countClasses(yTrue, yPred, n)

	undefined := false
	for _, l := range labels {
		c := counts[l]
		if c.support == 0 {
			continue // 重み 0
		}
		var p, r, f float64
		if c.predicted > 0 {
			p = float64(c.tp) / float64(c.predicted)
		} else {
			undefined = true
		}
		r = float64(c.tp) / float64(c.support)
		if p+r > 0 {
			f = 2 * p * r / (p + r)
		}
		w := float64(c.support) / float64(n)
		precision += w * p
		recall += w * r
		f1 += w * f
	}
	if undefined {
		errors.Warn(errors.NewUndefinedMetricWarning("Precision", "labels with no predicted samples", 0))
	}
	return precision, recall, f1, nil
}

// ClassificationReport は Accuracy, Precision, Recall, F1_Score をまとめて計算する。
func ClassificationReport(yTrue, yPred *mat.VecDense) (map[string]float64, error) {
	acc, err := Accuracy(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	p, r, f, err := WeightedScores(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	return map[string]float64{
		"Accuracy":  acc,
		"Precision": p,
		"Recall":    r,
		"F1_Score":  f,
	}, nil
}
