// Package pipeline はステージを順番に実行する学習パイプラインと、
// 保存済み成果物を使う推論パイプラインを提供します。
//
// 学習パイプラインの状態遷移は Ingest → Transform → Train → Evaluate → Done で、
// いずれかのステージが失敗すると StageError を返して停止します（Failed）。
// リトライやスキップは行いません。
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/catalog"
	"github.com/YuminosukeSato/scitrain/components/evaluation"
	"github.com/YuminosukeSato/scitrain/components/ingestion"
	"github.com/YuminosukeSato/scitrain/components/trainer"
	"github.com/YuminosukeSato/scitrain/components/transformation"
	"github.com/YuminosukeSato/scitrain/config"
	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/registry"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

// Result lists what a successful run produced.
type Result struct {
	RunID             string
	RawDataPath       string
	TrainDataPath     string
	TestDataPath      string
	PreprocessorPath  string
	ModelPath         string
	BestModel         string
	ModelScore        float64
	EvaluationMetrics map[string]float64
}

// RunRecorder persists the run history. *registry.Registry implements it.
type RunRecorder interface {
	Start(ctx context.Context, id string, startedAt time.Time) error
	Finish(ctx context.Context, id string, f registry.Finish) error
}

// TrainingPipeline wires the four stages.
type TrainingPipeline struct {
	Ingestion      ingestion.Config
	Transformation transformation.Config
	Trainer        trainer.Config
	Evaluation     evaluation.Config

	// Candidates builds the catalog for each run. Defaults to catalog.Default.
	Candidates func() []catalog.Candidate

	Logger   log.Logger
	Tracer   trace.Tracer
	Metrics  *telemetry.Recorder
	Registry RunRecorder
}

// NewTrainingPipeline builds a pipeline from the loaded configuration.
func NewTrainingPipeline(cfg *config.Config, logger log.Logger) *TrainingPipeline {
	pc := cfg.Pipeline
	return &TrainingPipeline{
		Ingestion: ingestion.Config{
			SourcePath:    pc.SourcePath,
			RawDataPath:   pc.RawDataPath,
			TrainDataPath: pc.TrainDataPath,
			TestDataPath:  pc.TestDataPath,
			TestSize:      pc.TestSize,
			Seed:          pc.Seed,
		},
		Transformation: transformation.Config{
			PreprocessorPath: pc.PreprocessorPath,
			TargetColumn:     pc.TargetColumn,
		},
		Trainer: trainer.Config{
			ModelPath:      pc.ModelPath,
			MinimumScore:   pc.MinimumScore,
			NJobs:          pc.NJobs,
			Folds:          pc.CVFolds,
			ReportPlotPath: pc.ReportPlotPath,
		},
		Evaluation: evaluation.Config{
			Task:                 evaluation.Task(cfg.Evaluation.Task),
			PerformanceThreshold: cfg.Evaluation.PerformanceThreshold,
			TargetColumn:         pc.TargetColumn,
			PlotPath:             pc.PredictionPlotPath,
		},
		Candidates: catalog.Default,
		Logger:     logger,
	}
}

// Run executes one training run.
func (p *TrainingPipeline) Run(ctx context.Context) (*Result, error) {
	candidates := p.candidates()
	if err := catalog.Validate(candidates); err != nil {
		return nil, err
	}

	logger := p.Logger
	if logger == nil {
		logger = log.Nop()
	}
	runID := uuid.NewString()
	sc := stage.New(runID, logger, p.Tracer, p.Metrics)
	started := time.Now()

	var (
		result *Result
		runErr error
	)
	if p.Registry != nil {
		if err := p.Registry.Start(ctx, runID, started); err != nil {
			sc.Logger.Warn("Run registry unavailable", log.ErrAttrKey, err.Error())
		} else {
			sc.OnFlush(func(ctx context.Context) error {
				return p.Registry.Finish(ctx, runID, finishRecord(result, runErr))
			})
		}
	}

	sc.Logger.Info("Training pipeline started", "candidates", catalog.Names(candidates))
	result, runErr = p.run(ctx, sc, candidates)

	status := registry.StatusSucceeded
	if runErr != nil {
		status = registry.StatusFailed
		sc.Logger.Error("Training pipeline failed", runErr,
			log.ErrorKindKey, errors.KindOf(runErr).String(),
			log.DurationMsKey, time.Since(started).Milliseconds(),
		)
	} else {
		sc.Logger.Info("Training pipeline completed",
			log.ModelNameKey, result.BestModel,
			log.R2ScoreKey, result.ModelScore,
			log.DurationMsKey, time.Since(started).Milliseconds(),
		)
	}
	sc.Metrics.RecordRun(status)
	if err := sc.Flush(ctx); err != nil {
		sc.Logger.Warn("Run context flush failed", log.ErrAttrKey, err.Error())
	}
	return result, runErr
}

func (p *TrainingPipeline) run(ctx context.Context, sc *stage.Context, candidates []catalog.Candidate) (*Result, error) {
	store := artifact.NewStore(sc.Logger)

	var ing *ingestion.Output
	err := sc.Run(ctx, stage.Ingest, func(ctx context.Context) error {
		var err error
		ing, err = ingestion.New(p.Ingestion, sc).Ingest(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var tr *transformation.Output
	err = sc.Run(ctx, stage.Transform, func(ctx context.Context) error {
		var err error
		tr, err = transformation.New(p.Transformation, store, sc).Transform(ctx, ing.TrainDataPath, ing.TestDataPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	var out *trainer.Outcome
	err = sc.Run(ctx, stage.Train, func(ctx context.Context) error {
		var err error
		split := trainer.Split{Train: tr.Train, Test: tr.Test}
		out, err = trainer.New(p.Trainer, store, sc).Train(ctx, split, candidates)
		return err
	})
	if err != nil {
		return nil, err
	}

	var evalMetrics map[string]float64
	err = sc.Run(ctx, stage.Evaluate, func(ctx context.Context) error {
		var err error
		evalMetrics, err = evaluation.New(p.Evaluation, sc).Evaluate(ctx, ing.TestDataPath, out.ModelPath, tr.PreprocessorPath)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:             sc.RunID,
		RawDataPath:       ing.RawDataPath,
		TrainDataPath:     ing.TrainDataPath,
		TestDataPath:      ing.TestDataPath,
		PreprocessorPath:  tr.PreprocessorPath,
		ModelPath:         out.ModelPath,
		BestModel:         out.BestName,
		ModelScore:        out.BestScore,
		EvaluationMetrics: evalMetrics,
	}, nil
}

func (p *TrainingPipeline) candidates() []catalog.Candidate {
	if p.Candidates == nil {
		return catalog.Default()
	}
	return p.Candidates()
}

func finishRecord(result *Result, runErr error) registry.Finish {
	if runErr != nil {
		return registry.Finish{Status: registry.StatusFailed, Err: runErr}
	}
	score := result.ModelScore
	return registry.Finish{
		Status:    registry.StatusSucceeded,
		BestModel: result.BestModel,
		Score:     &score,
		Metrics:   result.EvaluationMetrics,
	}
}
