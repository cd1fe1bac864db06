// Package transformation fits the preprocessor on the training split,
// applies it to both splits and persists it.
package transformation

import (
	"context"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/preprocessing"
)

// DefaultTargetColumn is the label column expected in every table.
const DefaultTargetColumn = "target"

// Config holds the preprocessor location and the label column.
type Config struct {
	PreprocessorPath string
	TargetColumn     string
}

// DefaultConfig は models/preprocessor.gob と target 列を返す
func DefaultConfig() Config {
	return Config{
		PreprocessorPath: filepath.Join("models", "preprocessor.gob"),
		TargetColumn:     DefaultTargetColumn,
	}
}

// Output holds the transformed arrays. The last column of Train and Test
// is the target.
type Output struct {
	Train              *mat.Dense
	Test               *mat.Dense
	PreprocessorPath   string
	NumericColumns     []string
	CategoricalColumns []string
}

// Transformer runs the transformation stage.
type Transformer struct {
	cfg    Config
	store  *artifact.Store
	logger log.Logger
}

// New returns a Transformer bound to the run context.
func New(cfg Config, store *artifact.Store, sc *stage.Context) *Transformer {
	if cfg.TargetColumn == "" {
		cfg.TargetColumn = DefaultTargetColumn
	}
	return &Transformer{cfg: cfg, store: store, logger: sc.StageLogger(stage.Transform)}
}

// SplitTarget separates the features from the target column of f.
func SplitTarget(f *dataset.Frame, target string, source string) (*dataset.Frame, []float64, error) {
	if f.Index(target) < 0 {
		return nil, nil, errors.NewSchemaError(source, "missing target column "+strconv.Quote(target))
	}
	y, err := f.Float(target)
	if err != nil {
		var schemaErr *errors.SchemaError
		if errors.As(err, &schemaErr) {
			return nil, nil, errors.NewSchemaError(source, schemaErr.Reason)
		}
		return nil, nil, err
	}
	features, err := f.Drop(target)
	if err != nil {
		return nil, nil, err
	}
	if len(features.Header) == 0 {
		return nil, nil, errors.NewSchemaError(source, "no feature columns besides "+strconv.Quote(target))
	}
	return features, y, nil
}

// Transform reads both splits, fits the preprocessor on train only and
// writes it to PreprocessorPath.
func (t *Transformer) Transform(_ context.Context, trainPath, testPath string) (*Output, error) {
	trainFrame, err := dataset.ReadCSV(trainPath)
	if err != nil {
		return nil, err
	}
	testFrame, err := dataset.ReadCSV(testPath)
	if err != nil {
		return nil, err
	}
	t.logger.Debug("Train and test data loaded",
		"train_rows", trainFrame.Len(),
		"test_rows", testFrame.Len(),
	)

	trainX, trainY, err := SplitTarget(trainFrame, t.cfg.TargetColumn, trainPath)
	if err != nil {
		return nil, err
	}
	testX, testY, err := SplitTarget(testFrame, t.cfg.TargetColumn, testPath)
	if err != nil {
		return nil, err
	}

	ct := preprocessing.NewColumnTransformer()
	trainArr, err := ct.FitTransform(trainX)
	if err != nil {
		return nil, err
	}
	t.logger.Info("Preprocessor fitted",
		"numeric_columns", ct.Numeric,
		"categorical_columns", ct.Categorical,
		log.FeaturesKey, ct.OutputWidth(),
	)
	testArr, err := ct.Transform(testX)
	if err != nil {
		return nil, err
	}

	if err := t.store.SavePreprocessor(t.cfg.PreprocessorPath, ct); err != nil {
		return nil, err
	}
	t.logger.Info("Preprocessor saved", log.PathKey, t.cfg.PreprocessorPath)

	return &Output{
		Train:              appendColumn(trainArr, trainY),
		Test:               appendColumn(testArr, testY),
		PreprocessorPath:   t.cfg.PreprocessorPath,
		NumericColumns:     ct.Numeric,
		CategoricalColumns: ct.Categorical,
	}, nil
}

// appendColumn returns [X | y].
func appendColumn(X *mat.Dense, y []float64) *mat.Dense {
	r, c := X.Dims()
	out := mat.NewDense(r, c+1, nil)
	out.Slice(0, r, 0, c).(*mat.Dense).Copy(X)
	out.SetCol(c, y)
	return out
}
