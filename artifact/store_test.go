package artifact

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
	"github.com/YuminosukeSato/scitrain/pkg/log"
	"github.com/YuminosukeSato/scitrain/preprocessing"
	"github.com/YuminosukeSato/scitrain/sklearn/ensemble"
	"github.com/YuminosukeSato/scitrain/sklearn/linear_model"
)

func trainingData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(10, 2, nil)
	y := mat.NewDense(10, 1, nil)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i*i%7))
		y.Set(i, 0, 3*float64(i)-X.At(i, 1)+0.5)
	}
	return X, y
}

func TestSaveLoadModelPredictionsIdentical(t *testing.T) {
	X, y := trainingData()
	tests := []struct {
		name string
		est  model.Estimator
	}{
		{"linear", linear_model.NewLinearRegression()},
		{"forest", ensemble.NewRandomForestRegressor(ensemble.WithForestEstimators(5))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.est.Fit(X, y))
			path := filepath.Join(t.TempDir(), "models", "model.gob")

			store := NewStore(nil)
			require.NoError(t, store.SaveModel(path, tt.est))
			loaded, err := store.LoadModel(path)
			require.NoError(t, err)

			want, err := model.PredictVec(tt.est, X)
			require.NoError(t, err)
			got, err := model.PredictVec(loaded, X)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSaveLoadPreprocessor(t *testing.T) {
	f := dataset.NewFrame([]string{"size", "color"})
	f.Rows = [][]string{{"1", "red"}, {"2", "blue"}, {"", "red"}, {"4", ""}}
	ct := preprocessing.NewColumnTransformer()
	want, err := ct.FitTransform(f)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preprocessor.gob")
	store := NewStore(nil)
	require.NoError(t, store.SavePreprocessor(path, ct))
	loaded, err := store.LoadPreprocessor(path)
	require.NoError(t, err)

	got, err := loaded.Transform(f)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
	assert.Equal(t, ct.InputColumns(), loaded.InputColumns())
}

func TestSaveLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	X, y := trainingData()
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	store := NewStore(nil)
	path := filepath.Join(dir, "model.gob")
	require.NoError(t, store.SaveModel(path, lr))
	// 上書き保存
	require.NoError(t, store.SaveModel(path, lr))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "model.gob", entries[0].Name())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := NewStore(nil).LoadModel(filepath.Join(t.TempDir(), "missing.gob"))
	require.Error(t, err)
	assert.Equal(t, errors.KindIO, errors.KindOf(err))
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, os.WriteFile(path, []byte("not an artifact"), 0o644))
	_, err := NewStore(nil).LoadModel(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindSerialization, errors.KindOf(err))
}

func TestLoadWrongType(t *testing.T) {
	X, y := trainingData()
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	path := filepath.Join(t.TempDir(), "model.gob")
	store := NewStore(nil)
	require.NoError(t, store.SaveModel(path, lr))

	_, err := store.LoadPreprocessor(path)
	require.Error(t, err)
	assert.Equal(t, errors.KindSerialization, errors.KindOf(err))
}

func TestStoreLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	X, y := trainingData()
	lr := linear_model.NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	path := filepath.Join(t.TempDir(), "model.gob")
	store := NewStore(logger)
	require.NoError(t, store.SaveModel(path, lr))
	_, err := store.LoadModel(path)
	require.NoError(t, err)

	assert.True(t, logger.ContainsField(log.PathKey, path))
	assert.True(t, logger.ContainsMessage("Artifact loaded"))
}
