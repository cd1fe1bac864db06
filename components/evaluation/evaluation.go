// Package evaluation scores the persisted model on the held-out split.
//
// The evaluator loads its own copies of the estimator and the preprocessor
// so it shares no state with the trainer.
package evaluation

import (
	"context"
	"math"
	"path/filepath"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/components/transformation"
	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/metrics"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/report"
)

// Task selects the metric family.
type Task string

const (
	TaskRegression     Task = "regression"
	TaskClassification Task = "classification"
)

// PerformanceThreshold is the default soft threshold on the headline metric.
const PerformanceThreshold = 0.6

// Config controls the evaluator.
type Config struct {
	Task                 Task
	PerformanceThreshold float64
	TargetColumn         string
	// PlotPath, when set, receives a predicted-vs-actual scatter.
	PlotPath string
}

// DefaultConfig はregressionタスクと閾値0.6を返す
func DefaultConfig() Config {
	return Config{
		Task:                 TaskRegression,
		PerformanceThreshold: PerformanceThreshold,
		TargetColumn:         transformation.DefaultTargetColumn,
	}
}

// Headline returns the metric compared against the threshold.
func (t Task) Headline() string {
	if t == TaskClassification {
		return "Accuracy"
	}
	return "R2_Score"
}

// Evaluator runs the evaluation stage.
type Evaluator struct {
	cfg    Config
	store  *artifact.Store
	logger log.Logger
}

// New returns an Evaluator bound to the run context.
func New(cfg Config, sc *stage.Context) *Evaluator {
	if cfg.Task == "" {
		cfg.Task = TaskRegression
	}
	if cfg.TargetColumn == "" {
		cfg.TargetColumn = transformation.DefaultTargetColumn
	}
	if cfg.PerformanceThreshold == 0 {
		cfg.PerformanceThreshold = PerformanceThreshold
	}
	logger := sc.StageLogger(stage.Evaluate)
	return &Evaluator{cfg: cfg, store: artifact.NewStore(logger), logger: logger}
}

// Evaluate loads the artifacts, predicts the held-out table and returns the
// metrics of the configured task. A headline metric below the threshold is
// logged as a warning; the metrics are returned either way.
func (e *Evaluator) Evaluate(_ context.Context, testDataPath, modelPath, preprocessorPath string) (map[string]float64, error) {
	if e.cfg.Task != TaskRegression && e.cfg.Task != TaskClassification {
		return nil, errors.NewValidationError("task", "must be regression or classification", string(e.cfg.Task))
	}

	est, err := e.store.LoadModel(modelPath)
	if err != nil {
		return nil, err
	}
	ct, err := e.store.LoadPreprocessor(preprocessorPath)
	if err != nil {
		return nil, err
	}
	frame, err := dataset.ReadCSV(testDataPath)
	if err != nil {
		return nil, err
	}
	features, yTrue, err := transformation.SplitTarget(frame, e.cfg.TargetColumn, testDataPath)
	if err != nil {
		return nil, err
	}
	X, err := ct.Transform(features)
	if err != nil {
		return nil, err
	}
	yPred, err := model.PredictVec(est, X)
	if err != nil {
		return nil, errors.NewModelError("Evaluator.Evaluate", "predict", err)
	}
	e.logger.Debug("Held-out data predicted",
		log.PathKey, filepath.Clean(testDataPath),
		log.SamplesKey, len(yTrue),
	)

	result, err := e.score(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	headline := e.cfg.Task.Headline()
	if result[headline] < e.cfg.PerformanceThreshold {
		e.logger.Warn("Model performance below threshold",
			"metric", headline,
			"value", result[headline],
			log.ThresholdKey, e.cfg.PerformanceThreshold,
		)
	}
	e.logger.Info("Model evaluated", "task", string(e.cfg.Task), "metrics", result)

	if e.cfg.PlotPath != "" {
		if err := report.PlotPredictions(yTrue, yPred, e.cfg.PlotPath); err != nil {
			e.logger.Warn("Prediction chart failed", log.PathKey, e.cfg.PlotPath, log.ErrAttrKey, err.Error())
		}
	}
	return result, nil
}

func (e *Evaluator) score(yTrue, yPred []float64) (map[string]float64, error) {
	t := mat.NewVecDense(len(yTrue), yTrue)
	if e.cfg.Task == TaskClassification {
		labels := make([]float64, len(yPred))
		for i, v := range yPred {
			labels[i] = math.Round(v)
		}
		return metrics.ClassificationReport(t, mat.NewVecDense(len(labels), labels))
	}
	return metrics.RegressionReport(t, mat.NewVecDense(len(yPred), yPred))
}
