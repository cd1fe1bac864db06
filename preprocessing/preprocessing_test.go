package preprocessing

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitrain/core/model"
	"github.com/YuminosukeSato/scitrain/dataset"
	"github.com/YuminosukeSato/scitrain/pkg/errors"
)

func TestStandardScaler(t *testing.T) {
	tests := []struct {
		name     string
		withMean bool
		X        *mat.Dense
		want     []float64 // first column after transform
	}{
		{
			name:     "center and scale",
			withMean: true,
			X:        mat.NewDense(4, 1, []float64{1, 2, 3, 4}),
			want:     []float64{-1.3416407864998738, -0.4472135954999579, 0.4472135954999579, 1.3416407864998738},
		},
		{
			// 分散は平均まわりで計算し、平均は引かない
			name:     "scale only",
			withMean: false,
			X:        mat.NewDense(2, 1, []float64{0, 2}),
			want:     []float64{0, 2},
		},
		{
			name:     "constant column keeps unit scale",
			withMean: true,
			X:        mat.NewDense(3, 1, []float64{5, 5, 5}),
			want:     []float64{0, 0, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStandardScaler(tt.withMean, true)
			out, err := s.FitTransform(tt.X)
			require.NoError(t, err)
			for i, w := range tt.want {
				assert.InDelta(t, w, out.At(i, 0), 1e-12)
			}
		})
	}
}

func TestStandardScalerNotFitted(t *testing.T) {
	s := NewStandardScaler(true, true)
	_, err := s.Transform(mat.NewDense(1, 1, []float64{1}))
	var nf *errors.NotFittedError
	assert.True(t, errors.As(err, &nf))
}

func TestSimpleImputer(t *testing.T) {
	rows := [][]string{{"1", "a"}, {"", "b"}, {"4", "b"}, {"10", ""}}

	med := NewSimpleImputer(StrategyMedian)
	require.NoError(t, med.Fit([][]string{{"1"}, {""}, {"4"}, {"10"}}))
	assert.Equal(t, []string{"4"}, med.Statistics)

	even := NewSimpleImputer(StrategyMedian)
	require.NoError(t, even.Fit([][]string{{"1"}, {"2"}, {"NaN"}, {"4"}, {"3"}}))
	assert.Equal(t, []string{"2.5"}, even.Statistics)

	freq := NewSimpleImputer(StrategyMostFrequent)
	require.NoError(t, freq.Fit(rows))
	assert.Equal(t, "b", freq.Statistics[1])

	out, err := freq.Transform(rows)
	require.NoError(t, err)
	assert.Equal(t, "b", out[3][1])
	assert.Equal(t, "", rows[3][1], "input must not be mutated")
}

func TestMostFrequentTieBreak(t *testing.T) {
	im := NewSimpleImputer(StrategyMostFrequent)
	require.NoError(t, im.Fit([][]string{{"z"}, {"a"}, {"z"}, {"a"}}))
	assert.Equal(t, "a", im.Statistics[0])
}

func TestOneHotEncoder(t *testing.T) {
	enc := NewOneHotEncoder(false)
	require.NoError(t, enc.Fit([][]string{{"red", "s"}, {"blue", "m"}, {"red", "m"}}))
	assert.Equal(t, [][]string{{"blue", "red"}, {"m", "s"}}, enc.Categories)
	assert.Equal(t, 4, enc.Width())

	out, err := enc.Transform([][]string{{"red", "m"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 0}, mat.Row(nil, 0, out))

	_, err = enc.Transform([][]string{{"green", "m"}})
	assert.Equal(t, errors.KindSchema, errors.KindOf(err))

	enc.IgnoreUnknown = true
	out, err = enc.Transform([][]string{{"green", "m"}})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, mat.Row(nil, 0, out))
}

func sampleFrame() *dataset.Frame {
	f := dataset.NewFrame([]string{"area", "city", "rooms"})
	f.Rows = [][]string{
		{"50", "tokyo", "2"},
		{"", "osaka", "3"},
		{"70", "tokyo", ""},
		{"90", "", "4"},
	}
	return f
}

func TestInferColumnTypes(t *testing.T) {
	num, cat := InferColumnTypes(sampleFrame())
	assert.Equal(t, []string{"area", "rooms"}, num)
	assert.Equal(t, []string{"city"}, cat)
}

func TestColumnTransformer(t *testing.T) {
	ct := NewColumnTransformer()
	X, err := ct.FitTransform(sampleFrame())
	require.NoError(t, err)

	r, c := X.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c) // 2 numeric + {osaka, tokyo}
	assert.Equal(t, 4, ct.OutputWidth())
	assert.Equal(t, []string{"area", "city", "rooms"}, ct.InputColumns())

	// numeric block is centered
	for j := 0; j < 2; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}

	// re-transforming the training frame reproduces FitTransform exactly
	again, err := ct.Transform(sampleFrame())
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, again))

	// reordered columns with extras and an unseen city still work
	other := dataset.NewFrame([]string{"rooms", "extra", "city", "area"})
	other.Rows = [][]string{{"3", "x", "kyoto", "60"}}
	out, err := ct.Transform(other)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out.At(0, 2))
	assert.Equal(t, 0.0, out.At(0, 3))
	for j := 0; j < 4; j++ {
		assert.False(t, math.IsNaN(out.At(0, j)))
	}

	missing := dataset.NewFrame([]string{"area", "rooms"})
	missing.Rows = [][]string{{"1", "2"}}
	_, err = ct.Transform(missing)
	assert.Equal(t, errors.KindSchema, errors.KindOf(err))
}

func TestColumnTransformerSchemaErrorSource(t *testing.T) {
	ct := NewColumnTransformer()
	_, err := ct.FitTransform(sampleFrame())
	require.NoError(t, err)

	tests := []struct {
		name   string
		header []string
		row    []string
		source string
		reason string
	}{
		{"missing column", []string{"area", "rooms"}, []string{"1", "2"}, "test.csv", `missing column "city"`},
		{"not numeric", []string{"area", "rooms", "city"}, []string{"big", "2", "tokyo"}, "predict request", `"big"`},
		{"no source", []string{"area", "rooms"}, []string{"1", "2"}, "", `missing column "city"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := dataset.NewFrame(tt.header)
			f.Rows = [][]string{tt.row}
			f.Source = tt.source
			_, err := ct.Transform(f)
			var schemaErr *errors.SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.source, schemaErr.Source)
			assert.Contains(t, schemaErr.Reason, tt.reason)
		})
	}
}

func TestColumnTransformerGobRoundTrip(t *testing.T) {
	ct := NewColumnTransformer()
	X, err := ct.FitTransform(sampleFrame())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, model.SaveModelToWriter(ct, &buf))
	var loaded ColumnTransformer
	require.NoError(t, model.LoadModelFromReader(&loaded, &buf))

	again, err := loaded.Transform(sampleFrame())
	require.NoError(t, err)
	assert.True(t, mat.Equal(X, again))
}
