// Package trainer はモデル選択エンジンとモデルトレーナーを提供します。
//
// Engine はカタログの各候補をグリッドサーチ（3 分割交差検証）で調整し、
// 学習データ全体で再学習して学習・テスト両方の R² を記録します。
// Trainer はその結果から最良候補を選び、品質基準を満たした場合のみ
// 成果物として保存します。
package trainer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/catalog"
	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/metrics"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/sklearn/model_selection"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

// DefaultFolds is the number of cross-validation folds used by grid search.
const DefaultFolds = 3

// ReportEntry is the outcome of one candidate.
type ReportEntry struct {
	Name       string
	TestScore  float64
	TrainScore float64
	BestParams map[string]interface{}
}

// Report holds one entry per candidate in catalog order.
type Report struct {
	Entries []ReportEntry
}

// Scores returns the candidate name to test R² mapping.
func (r *Report) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Name] = e.TestScore
	}
	return out
}

// Names returns the candidate names in catalog order.
func (r *Report) Names() []string {
	out := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.Name
	}
	return out
}

// TestScores returns the test R² values in catalog order.
func (r *Report) TestScores() []float64 {
	out := make([]float64, len(r.Entries))
	for i, e := range r.Entries {
		out[i] = e.TestScore
	}
	return out
}

// Engine evaluates candidates against a fixed train/test split.
type Engine struct {
	// NJobs sizes the grid-search worker pool. Values <= 0 use every CPU.
	NJobs  int
	Folds  int
	Logger log.Logger
	Tracer trace.Tracer
}

// NewEngine returns an Engine with three folds and a no-op tracer.
func NewEngine(nJobs int, logger log.Logger) *Engine {
	return &Engine{
		NJobs:  nJobs,
		Folds:  DefaultFolds,
		Logger: logger,
		Tracer: noop.NewTracerProvider().Tracer(telemetry.TracerName),
	}
}

// Evaluate tunes, fits and scores every candidate in order.
//
// A candidate whose final fit or prediction fails aborts the whole call;
// failures inside the grid search only score that combination as NaN.
// The estimators in candidates are left fitted with their winning
// hyperparameters.
func (e *Engine) Evaluate(ctx context.Context, trainX, trainY, testX, testY mat.Matrix, candidates []catalog.Candidate) (*Report, error) {
	report := &Report{Entries: make([]ReportEntry, 0, len(candidates))}
	for _, c := range candidates {
		entry, err := e.evaluateOne(ctx, c, trainX, trainY, testX, testY)
		if err != nil {
			return nil, err
		}
		report.Entries = append(report.Entries, entry)
	}
	return report, nil
}

func (e *Engine) evaluateOne(ctx context.Context, c catalog.Candidate, trainX, trainY, testX, testY mat.Matrix) (ReportEntry, error) {
	ctx, span := e.tracer().Start(ctx, "candidate", trace.WithAttributes(
		attribute.String("model.name", c.Name),
		attribute.Int("search.combinations", c.SearchSpace.Size()),
	))
	defer span.End()

	logger := e.logger().With(log.ModelNameKey, c.Name)
	start := time.Now()
	entry, err := e.tuneAndScore(ctx, c, logger, trainX, trainY, testX, testY)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ReportEntry{}, err
	}
	span.SetAttributes(attribute.Float64("metrics.r2_score", entry.TestScore))

	logger.Info("Candidate evaluated",
		log.R2ScoreKey, entry.TestScore,
		log.TrainScoreKey, entry.TrainScore,
		log.HyperParamsKey, entry.BestParams,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return entry, nil
}

func (e *Engine) tuneAndScore(ctx context.Context, c catalog.Candidate, logger log.Logger, trainX, trainY, testX, testY mat.Matrix) (ReportEntry, error) {
	entry := ReportEntry{Name: c.Name}

	if c.SearchSpace.Size() > 0 {
		folds := e.Folds
		if folds <= 0 {
			folds = DefaultFolds
		}
		gs := model_selection.NewGridSearchCV(c.Estimator, c.SearchSpace,
			model_selection.WithCV(model_selection.NewKFold(folds, false, 0)),
			model_selection.WithNJobs(e.NJobs),
			model_selection.WithName(c.Name),
			model_selection.WithLogger(logger),
		)
		if err := gs.Fit(ctx, trainX, trainY); err != nil {
			return entry, errors.NewModelError("Engine.Evaluate", c.Name, err)
		}
	}
	entry.BestParams = c.Estimator.GetParams()

	err := errors.SafeExecute("Engine.fit", func() error {
		if err := c.Estimator.Fit(trainX, trainY); err != nil {
			return err
		}
		var err error
		entry.TrainScore, err = score(c.Estimator, trainX, trainY)
		if err != nil {
			return err
		}
		entry.TestScore, err = score(c.Estimator, testX, testY)
		return err
	})
	if err != nil {
		return entry, errors.NewModelError("Engine.Evaluate", c.Name, err)
	}
	return entry, nil
}

func (e *Engine) logger() log.Logger {
	if e.Logger == nil {
		return log.Nop()
	}
	return e.Logger
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer == nil {
		return noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	return e.Tracer
}

// score predicts X with est and returns the R² against y.
func score(est model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := est.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}
