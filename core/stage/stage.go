// Package stage はパイプラインの各ステージが共有する実行コンテキストを提供します。
//
// Context はオーケストレータが実行開始時に作成し、終端状態（成功・失敗）で
// Flush します。各ステージはコンストラクタで Context を受け取り、ロガー・
// トレーサー・メトリクスをグローバル状態なしで利用します。
package stage

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/telemetry"
)

// Stage names in execution order.
const (
	Ingest    = "ingest"
	Transform = "transform"
	Train     = "train"
	Evaluate  = "evaluate"
)

// Context carries the per-run observability handles.
type Context struct {
	RunID   string
	Logger  log.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.Recorder

	flushers []func(context.Context) error
}

// New returns a Context for one run. A nil tracer becomes a no-op tracer
// and nil metrics become a private recorder.
func New(runID string, logger log.Logger, tracer trace.Tracer, metrics *telemetry.Recorder) *Context {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(telemetry.TracerName)
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder()
	}
	return &Context{
		RunID:   runID,
		Logger:  logger.With(log.RunIDKey, runID),
		Tracer:  tracer,
		Metrics: metrics,
	}
}

// StageLogger returns the run logger scoped to one stage.
func (c *Context) StageLogger(name string) log.Logger {
	return c.Logger.With(log.StageKey, name)
}

// OnFlush registers fn to run when the context is flushed.
func (c *Context) OnFlush(fn func(context.Context) error) {
	c.flushers = append(c.flushers, fn)
}

// Run executes one stage inside a span, times it and converts a failure
// into a StageError naming the stage.
func (c *Context) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := c.Tracer.Start(ctx, "stage."+name, trace.WithAttributes(
		attribute.String("pipeline.run_id", c.RunID),
		attribute.String("pipeline.stage", name),
	))
	defer span.End()

	logger := c.StageLogger(name)
	logger.Info("Stage started")
	start := time.Now()

	err := errors.SafeExecute("stage."+name, func() error { return fn(ctx) })
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.Metrics.ObserveStage(name, "error", elapsed)
		c.Metrics.RecordError(errors.KindOf(err).String(), name)
		logger.Error("Stage failed", err, log.DurationMsKey, elapsed.Milliseconds())
		return errors.NewStageError(name, err)
	}

	span.SetStatus(codes.Ok, "")
	c.Metrics.ObserveStage(name, "ok", elapsed)
	logger.Info("Stage completed", log.DurationMsKey, elapsed.Milliseconds())
	return nil
}

// Flush runs the registered flush hooks in reverse order and returns the
// first error.
func (c *Context) Flush(ctx context.Context) error {
	var first error
	for i := len(c.flushers) - 1; i >= 0; i-- {
		if err := c.flushers[i](ctx); err != nil {
			if first == nil {
				first = err
			}
			c.Logger.Warn("Flush hook failed", log.ErrAttrKey, err.Error())
		}
	}
	c.flushers = nil
	return first
}
