package trainer

import (
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/artifact"
	"github.com/YuminosukeSato/scitrain/catalog"
	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/core/stage"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/sklearn/linear_model"
	"github.com/YuminosukeSato/scitrain/sklearn/tree"
)

func init() {
	gob.Register(&shiftEstimator{})
}

// shiftEstimator predicts the first feature plus Offsets[i] for row i.
type shiftEstimator struct {
	Offsets []float64
	Fail    bool
}

func (e *shiftEstimator) Fit(_, _ mat.Matrix) error {
	if e.Fail {
		return errors.New("fit exploded")
	}
	return nil
}

func (e *shiftEstimator) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		v := X.At(i, 0)
		if i < len(e.Offsets) {
			v += e.Offsets[i]
		}
		out.Set(i, 0, v)
	}
	return out, nil
}

func (e *shiftEstimator) GetParams() map[string]interface{} {
	return map[string]interface{}{"fail": e.Fail}
}

func (e *shiftEstimator) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		if k != "fail" {
			return model.UnknownParam("shiftEstimator", k, v)
		}
		b, ok := v.(bool)
		if !ok {
			return errors.NewValidationError(k, "must be bool", v)
		}
		e.Fail = b
	}
	return nil
}

func (e *shiftEstimator) Clone() model.Estimator {
	return &shiftEstimator{Offsets: append([]float64(nil), e.Offsets...), Fail: e.Fail}
}

// fixedSplit has test targets -2..2 (TSS = 10) equal to the only feature,
// so an estimator with offsets o scores 1 - Σo²/10.
func fixedSplit() Split {
	train := mat.NewDense(6, 2, []float64{
		0, 0,
		1, 1,
		2, 2,
		3, 3,
		4, 4,
		5, 5,
	})
	test := mat.NewDense(5, 2, []float64{
		-2, -2,
		-1, -1,
		0, 0,
		1, 1,
		2, 2,
	})
	return Split{Train: train, Test: test}
}

func shift(name string, offsets ...float64) catalog.Candidate {
	return catalog.Candidate{Name: name, Estimator: &shiftEstimator{Offsets: offsets}}
}

func newTrainer(t *testing.T, cfg Config) (*Trainer, *log.TestLogger) {
	t.Helper()
	logger, _ := log.NewTestLogger(log.LevelDebug)
	sc := stage.New("test-run", logger, nil, nil)
	return New(cfg, artifact.NewStore(nil), sc), logger
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.ModelPath = filepath.Join(t.TempDir(), "models", "model.gob")
	cfg.NJobs = 2
	return cfg
}

func TestTrainPersistsBestCandidate(t *testing.T) {
	cfg := testConfig(t)
	cfg.ReportPlotPath = filepath.Join(filepath.Dir(cfg.ModelPath), "report.png")
	tr, logger := newTrainer(t, cfg)

	out, err := tr.Train(context.Background(), fixedSplit(), []catalog.Candidate{
		shift("A", 2, 1, 0, 0, 0), // 0.5
		shift("B", 1, 1, 1, 0, 0), // 0.7
	})
	require.NoError(t, err)
	assert.Equal(t, "B", out.BestName)
	assert.InDelta(t, 0.7, out.BestScore, 1e-12)
	assert.Equal(t, []string{"A", "B"}, out.Report.Names())
	assert.InDelta(t, 0.5, out.Report.Scores()["A"], 1e-12)
	assert.Equal(t, cfg.ModelPath, out.ModelPath)

	loaded, err := artifact.NewStore(nil).LoadModel(cfg.ModelPath)
	require.NoError(t, err)
	testX, _, err := fixedSplit().TestXY()
	require.NoError(t, err)
	got, err := loaded.Predict(testX)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 0, 1, 1, 2}, model.Column(got, 0))

	_, err = os.Stat(cfg.ReportPlotPath)
	assert.NoError(t, err)
	assert.True(t, logger.ContainsMessage("Best model saved"))
	assert.True(t, logger.ContainsField(log.ModelNameKey, "B"))
}

func TestTrainInsufficientPerformance(t *testing.T) {
	cfg := testConfig(t)
	tr, _ := newTrainer(t, cfg)

	out, err := tr.Train(context.Background(), fixedSplit(), []catalog.Candidate{
		shift("A", 2, 1, 1, 0, 0),     // 0.4
		shift("B", 1.5, 1.5, 0, 0, 0), // 0.55
	})
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, errors.Is(err, errors.ErrInsufficientPerformance))
	assert.Equal(t, errors.KindInsufficientPerformance, errors.KindOf(err))

	var perfErr *errors.InsufficientPerformanceError
	require.True(t, errors.As(err, &perfErr))
	assert.Equal(t, "B", perfErr.BestModel)
	assert.InDelta(t, 0.55, perfErr.BestScore, 1e-12)
	assert.Equal(t, MinimumScore, perfErr.Threshold)

	_, statErr := os.Stat(cfg.ModelPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestTrainTieGoesToFirstCandidate(t *testing.T) {
	tr, _ := newTrainer(t, testConfig(t))
	out, err := tr.Train(context.Background(), fixedSplit(), []catalog.Candidate{
		shift("first", 1, 1, 1, 0, 0),
		shift("second", 1, 1, 1, 0, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "first", out.BestName)
}

func TestTrainWithRealEstimators(t *testing.T) {
	n := 40
	train := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		x1, x2 := float64(i), float64(i%7)
		train.SetRow(i, []float64{x1, x2, 3*x1 - 2*x2 + 1})
	}
	test := mat.NewDense(8, 3, nil)
	for i := 0; i < 8; i++ {
		x1, x2 := float64(i)*5+0.5, float64((i*3)%7)
		test.SetRow(i, []float64{x1, x2, 3*x1 - 2*x2 + 1})
	}

	candidates := []catalog.Candidate{
		{
			Name:      catalog.DecisionTree,
			Estimator: tree.NewDecisionTreeRegressor(),
			SearchSpace: model.SearchSpace{
				"criterion": {tree.CriterionSquaredError, tree.CriterionAbsoluteError},
			},
		},
		{Name: catalog.LinearRegression, Estimator: linear_model.NewLinearRegression()},
	}
	require.NoError(t, catalog.Validate(candidates))

	tr, _ := newTrainer(t, testConfig(t))
	out, err := tr.Train(context.Background(), Split{Train: train, Test: test}, candidates)
	require.NoError(t, err)
	require.Len(t, out.Report.Entries, 2)
	assert.Equal(t, catalog.LinearRegression, out.BestName)
	assert.InDelta(t, 1.0, out.BestScore, 1e-9)
	assert.Contains(t, out.Report.Entries[0].BestParams, "criterion")
	assert.InDelta(t, 1.0, out.Report.Entries[1].TrainScore, 1e-9)
}

func TestEngineFinalFitFailureAborts(t *testing.T) {
	split := fixedSplit()
	trainX, trainY, err := split.TrainXY()
	require.NoError(t, err)
	testX, testY, err := split.TestXY()
	require.NoError(t, err)

	broken := shift("Broken")
	broken.Estimator.(*shiftEstimator).Fail = true

	rep, err := NewEngine(1, nil).Evaluate(context.Background(), trainX, trainY, testX, testY,
		[]catalog.Candidate{shift("Fine"), broken})
	require.Error(t, err)
	assert.Nil(t, rep)

	var modelErr *errors.ModelError
	require.True(t, errors.As(err, &modelErr))
	assert.Equal(t, "Broken", modelErr.Kind)
}

func TestEngineGridSearchAllFailed(t *testing.T) {
	split := fixedSplit()
	trainX, trainY, _ := split.TrainXY()
	testX, testY, _ := split.TestXY()

	errors.SetZerologWarnFunc(func(error) {})
	defer errors.SetZerologWarnFunc(nil)

	c := shift("Flaky")
	c.SearchSpace = model.SearchSpace{"fail": {true}}
	_, err := NewEngine(1, nil).Evaluate(context.Background(), trainX, trainY, testX, testY, []catalog.Candidate{c})
	require.Error(t, err)
	assert.Equal(t, errors.KindModel, errors.KindOf(err))
}

func TestSelectBest(t *testing.T) {
	tests := []struct {
		name     string
		scores   []float64
		wantName string
		wantTies []string
		wantOK   bool
	}{
		{"max wins", []float64{0.1, 0.9, 0.5}, "c1", nil, true},
		{"first of equals", []float64{0.9, 0.9}, "c0", nil, true},
		{"near tie flagged", []float64{0.7, 0.7 + 1e-13}, "c1", []string{"c0"}, true},
		{"nan ignored", []float64{math.NaN(), 0.2}, "c1", nil, true},
		{"all nan", []float64{math.NaN()}, "", nil, false},
	}
	names := []string{"c0", "c1", "c2"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Report{}
			for i, s := range tt.scores {
				r.Entries = append(r.Entries, ReportEntry{Name: names[i], TestScore: s})
			}
			best, ties, ok := SelectBest(r)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, best.Name)
			assert.Equal(t, tt.wantTies, ties)
		})
	}
}

func TestSplitValidation(t *testing.T) {
	_, _, err := Split{}.TrainXY()
	assert.Error(t, err)
	_, _, err = Split{Test: mat.NewDense(2, 1, []float64{1, 2})}.TestXY()
	assert.Error(t, err)

	tr, _ := newTrainer(t, testConfig(t))
	_, err = tr.Train(context.Background(), fixedSplit(), nil)
	assert.Error(t, err)
}
