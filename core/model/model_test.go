package model

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func TestSearchSpaceSize(t *testing.T) {
	assert.Equal(t, 0, SearchSpace{}.Size())
	assert.Equal(t, 6, SearchSpace{"n_estimators": {8, 16, 32, 64, 128, 256}}.Size())
	assert.Equal(t, 144, SearchSpace{
		"learning_rate": {.1, .01, .05, .001},
		"subsample":     {0.6, 0.7, 0.75, 0.8, 0.85, 0.9},
		"n_estimators":  {8, 16, 32, 64, 128, 256},
	}.Size())
}

func TestCheckXy(t *testing.T) {
	tests := []struct {
		name    string
		X, y    mat.Matrix
		wantErr bool
	}{
		{"ok", mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 1, []float64{1, 2}), false},
		{"row mismatch", mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(3, 1, []float64{1, 2, 3}), true},
		{"multi target", mat.NewDense(2, 2, []float64{1, 2, 3, 4}), mat.NewDense(2, 2, []float64{1, 2, 3, 4}), true},
		{"nan", mat.NewDense(2, 1, []float64{1, math.NaN()}), mat.NewDense(2, 1, []float64{1, 2}), true},
		{"inf target", mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, math.Inf(1)}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := CheckXy("Test.Fit", tt.X, tt.y)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStateManager(t *testing.T) {
	var s StateManager
	err := s.RequireFitted("Test", "Predict", 3)
	var nf *errors.NotFittedError
	require.True(t, errors.As(err, &nf))

	s.MarkFitted(3, 10)
	assert.NoError(t, s.RequireFitted("Test", "Predict", 3))

	var dim *errors.DimensionError
	require.True(t, errors.As(s.RequireFitted("Test", "Predict", 4), &dim))
	assert.Equal(t, 3, dim.Expected)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestParamConversion(t *testing.T) {
	n, err := ToInt("n_estimators", 64.0)
	require.NoError(t, err)
	assert.Equal(t, 64, n)

	_, err = ToInt("n_estimators", 6.5)
	assert.Error(t, err)

	f, err := ToFloat("learning_rate", 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)

	_, err = ToString("criterion", 3)
	assert.Error(t, err)
}

func TestPersistenceRoundTrip(t *testing.T) {
	type fitted struct {
		State   StateManager
		Weights []float64
	}
	in := &fitted{Weights: []float64{0.5, -1.25}}
	in.State.MarkFitted(2, 5)

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(in, &buf))

	var out fitted
	require.NoError(t, LoadModelFromReader(&out, &buf))
	assert.True(t, out.State.IsFitted())
	assert.Equal(t, in.Weights, out.Weights)
	assert.Equal(t, 5, out.State.NSamples)

	assert.Error(t, LoadModelFromReader(&out, bytes.NewReader([]byte("garbage"))))
}
