package linear_model

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/parallel"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

// predictParallelThreshold 未満の行数では並列化しない
const predictParallelThreshold = 1000

func init() {
	gob.Register(&LinearRegression{})
}

// LinearRegression is ordinary least squares regression.
//
// The system is solved with a thin SVD of the centered design matrix, so
// rank deficient inputs (one-hot blocks, duplicated columns) yield the
// minimum-norm solution instead of failing.
type LinearRegression struct {
	State model.StateManager

	// Hyperparameters
	FitIntercept bool

	// Learned parameters
	Coef      []float64
	Intercept float64
	Rank      int
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithFitIntercept は切片の学習有無を設定
func WithFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := model.CheckXy("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	xMean := make([]float64, cols)
	var yMean float64
	if lr.FitIntercept {
		for j := 0; j < cols; j++ {
			for i := 0; i < rows; i++ {
				xMean[j] += X.At(i, j)
			}
			xMean[j] /= float64(rows)
		}
		for i := 0; i < rows; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(rows)
	}

	Xc := mat.NewDense(rows, cols, nil)
	yc := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			Xc.Set(i, j, X.At(i, j)-xMean[j])
		}
		yc.Set(i, 0, y.At(i, 0)-yMean)
	}

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "SVD factorization failed", errors.ErrSingularMatrix)
	}

	// numpy.linalg.lstsq と同じ既定の打ち切り
	rcond := math.Nextafter(1, 2) - 1
	rcond *= float64(max(rows, cols))
	lr.Rank = svd.Rank(rcond)

	lr.Coef = make([]float64, cols)
	lr.Intercept = yMean
	if lr.Rank > 0 {
		var w mat.Dense
		svd.SolveTo(&w, yc, lr.Rank)
		for j := 0; j < cols; j++ {
			lr.Coef[j] = w.At(j, 0)
			lr.Intercept -= xMean[j] * lr.Coef[j]
		}
	}

	lr.State.MarkFitted(cols, rows)
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	rows, cols := X.Dims()
	if err := lr.State.RequireFitted("LinearRegression", "Predict", cols); err != nil {
		return nil, err
	}

	predictions := mat.NewDense(rows, 1, nil)
	// 行数が多いときだけ行ブロック単位で並列化する
	parallel.ParallelizeWithThreshold(rows, predictParallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := lr.Intercept
			for j := 0; j < cols; j++ {
				pred += X.At(i, j) * lr.Coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	return predictions, nil
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.FitIntercept,
	}
}

// SetParams sets the model's hyperparameters.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a bool", v)
			}
			lr.FitIntercept = b
		default:
			return model.UnknownParam("LinearRegression", k, v)
		}
	}
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のモデルを返す
func (lr *LinearRegression) Clone() model.Estimator {
	return NewLinearRegression(WithFitIntercept(lr.FitIntercept))
}

// String returns the string representation of the model
func (lr *LinearRegression) String() string {
	return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.FitIntercept)
}
