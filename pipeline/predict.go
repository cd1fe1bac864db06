package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
)

// PredictPipeline serves predictions from the persisted artifacts.
//
// Artifacts are loaded on every call, so a model retrained between two
// requests is picked up without a restart.
type PredictPipeline struct {
	ModelPath        string
	PreprocessorPath string

	store  *artifact.Store
	logger log.Logger
}

// NewPredictPipeline returns a PredictPipeline. logger may be nil.
func NewPredictPipeline(modelPath, preprocessorPath string, logger log.Logger) *PredictPipeline {
	if logger == nil {
		logger = log.Nop()
	}
	return &PredictPipeline{
		ModelPath:        modelPath,
		PreprocessorPath: preprocessorPath,
		store:            artifact.NewStore(logger),
		logger:           logger,
	}
}

// Predict converts records into a frame over the preprocessor's input
// columns and returns one prediction per record. Keys the preprocessor
// does not know are ignored; absent keys are imputed.
func (p *PredictPipeline) Predict(_ context.Context, records []map[string]interface{}) ([]float64, error) {
	if len(records) == 0 {
		return nil, errors.NewValueError("PredictPipeline.Predict", "no records")
	}
	start := time.Now()
	est, err := p.store.LoadModel(p.ModelPath)
	if err != nil {
		return nil, err
	}
	ct, err := p.store.LoadPreprocessor(p.PreprocessorPath)
	if err != nil {
		return nil, err
	}

	frame := dataset.FromRecords(ct.InputColumns(), records)
	frame.Source = "predict request"
	X, err := ct.Transform(frame)
	if err != nil {
		return nil, err
	}
	preds, err := model.PredictVec(est, X)
	if err != nil {
		return nil, errors.NewModelError("PredictPipeline.Predict", "predict", err)
	}
	p.logger.Debug("Prediction served",
		log.SamplesKey, len(records),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return preds, nil
}

// InputColumns returns the feature columns the preprocessor was fitted on.
func (p *PredictPipeline) InputColumns(_ context.Context) ([]string, error) {
	ct, err := p.store.LoadPreprocessor(p.PreprocessorPath)
	if err != nil {
		return nil, err
	}
	return ct.InputColumns(), nil
}
