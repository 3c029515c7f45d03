package linear

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

func TestLinearRegressionFit(t *testing.T) {
	// y = 2·x0 − 3·x1 + 5
	rng := rand.New(rand.NewPCG(1, 1))
	n := 50
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0, x1 := rng.Float64()*10, rng.Float64()*10
		X.Set(i, 0, x0)
		X.Set(i, 1, x1)
		y.Set(i, 0, 2*x0-3*x1+5)
	}

	tests := []struct {
		name          string
		opts          []Option
		wantIntercept float64
	}{
		{"default", nil, 5},
		{"parallel design matrix", []Option{WithWorkers(4)}, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr := NewLinearRegression(tt.opts...)
			require.NoError(t, lr.Fit(X, y))
			assert.InDeltaSlice(t, []float64{2, -3}, lr.Coefficients(), 1e-8)
			assert.InDelta(t, tt.wantIntercept, lr.Intercept(), 1e-8)

			score, err := lr.Score(X, y)
			require.NoError(t, err)
			assert.InDelta(t, 1.0, score, 1e-10)
		})
	}
}

func TestLinearRegressionNoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.InDeltaSlice(t, []float64{2}, lr.Coefficients(), 1e-10)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegressionSingular(t *testing.T) {
	// second column is constant zero
	X := mat.NewDense(4, 2, []float64{1, 0, 2, 0, 3, 0, 4, 0})
	y := mat.NewDense(4, 1, []float64{1, 2, 3, 4})

	err := NewLinearRegression().Fit(X, y)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSingularMatrix))

	ridge := NewLinearRegression(WithAlpha(1e-6))
	require.NoError(t, ridge.Fit(X, y))
	pred, err := ridge.Predict(mat.NewDense(1, 2, []float64{5, 0}))
	require.NoError(t, err)
	assert.InDelta(t, 5.0, pred.At(0, 0), 1e-3)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 1, []float64{1}))
	var notFitted *errors.NotFittedError
	assert.True(t, errors.As(err, &notFitted))

	err = lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(2, 1, []float64{1, 2}))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	err = NewLinearRegression(WithAlpha(-1)).Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}))
	assert.True(t, errors.IsConfiguration(err))

	require.NoError(t, lr.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 2, 3})))
	_, err = lr.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.True(t, errors.As(err, &dimErr))
}
