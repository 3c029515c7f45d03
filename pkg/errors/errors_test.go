package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "smogncv: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "smogncv: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 3, 1)
	assert.Equal(t, "smogncv: Predict: dimension mismatch on axis 1 (features). Expected 10, got 3", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("RandomForestRegressor", "Predict")
	want := "smogncv: RandomForestRegressor: this model is not fitted yet. Call Fit() before using Predict()"
	assert.Equal(t, want, err.Error())

	var notFittedErr *NotFittedError
	assert.True(t, As(err, &notFittedErr))
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("relevance_threshold", "must be in (0, 1)", 1.5)
	assert.Equal(t, "smogncv: invalid configuration for 'relevance_threshold': must be in (0, 1) (got: 1.5)", err.Error())
	assert.True(t, IsConfiguration(err))
	assert.False(t, IsInsufficientData(err))

	wrapped := Wrap(err, "building engine")
	assert.True(t, IsConfiguration(wrapped))
}

func TestInsufficientDataError(t *testing.T) {
	err := NewInsufficientDataError("smogn.Resample", "rare_high", 3, 4)
	assert.Equal(t, "smogncv: smogn.Resample: insufficient data in stratum rare_high: have 3 rows, need at least 4", err.Error())
	assert.True(t, IsInsufficientData(Wrapf(err, "fold %d", 2)))

	var insufficient *InsufficientDataError
	require.True(t, As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Have)
	assert.Equal(t, 4, insufficient.Need)
}

func TestModelFitError(t *testing.T) {
	cause := fmt.Errorf("singular matrix")
	err := NewModelFitError(4, "fit", cause)

	assert.Equal(t, "smogncv: fold 4: model fit failed: singular matrix", err.Error())
	assert.True(t, Is(err, cause))

	var fitErr *ModelFitError
	require.True(t, As(err, &fitErr))
	assert.Equal(t, 4, fitErr.Fold)
	assert.Equal(t, "fit", fitErr.Phase)
}

func TestZerologMarshalers(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	logger.Error().Object("detail", &InsufficientDataError{Op: "resample", Stratum: "rare_low", Have: 1, Need: 6}).Msg("failed")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	detail, ok := entry["detail"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "InsufficientDataError", detail["type"])
	assert.Equal(t, "rare_low", detail["stratum"])
	assert.Equal(t, 6.0, detail["need"])
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Resample", 10, 0)

	assert.True(t, Is(wrapped, ErrEmptyData))
	assert.Contains(t, wrapped.Error(), "in Resample: expected 10, got 0")
}

func TestWarn(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("r2", "zero variance in y_true", 0))
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(got[0], "'r2' is ill-defined"))

	var zl []error
	SetZerologWarnFunc(func(w error) { zl = append(zl, w) })
	defer SetZerologWarnFunc(nil)

	Warn(New("routed"))
	assert.Len(t, got, 1, "zerolog hook takes precedence over the handler")
	assert.Len(t, zl, 1)
}

func TestCheckFinite(t *testing.T) {
	assert.NoError(t, CheckFinite("op", []float64{0, 1.5, -3}))

	err := CheckFinite("op", []float64{1, math.NaN(), 2})
	require.Error(t, err)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 1, numErr.Index)

	assert.Error(t, CheckFinite("op", []float64{math.Inf(1)}))
}

func TestSafeDivide(t *testing.T) {
	assert.Equal(t, 2.0, SafeDivide(4, 2, -1))
	assert.Equal(t, -1.0, SafeDivide(4, 0, -1))
}

func TestRecover(t *testing.T) {
	t.Run("with panic", func(t *testing.T) {
		err := SafeExecute("fold 0 fit", func() error {
			panic("boom")
		})
		require.Error(t, err)

		var panicErr *PanicError
		require.True(t, As(err, &panicErr))
		assert.Equal(t, "fold 0 fit", panicErr.Operation)
		assert.Equal(t, "panic in fold 0 fit: boom", panicErr.Error())
		assert.NotEmpty(t, panicErr.StackTrace)
	})

	t.Run("without panic", func(t *testing.T) {
		assert.NoError(t, SafeExecute("noop", func() error { return nil }))
	})

	t.Run("existing error is kept", func(t *testing.T) {
		original := fmt.Errorf("original error")
		fn := func() (err error) {
			defer Recover(&err, "op")
			err = original
			panic("after error")
		}
		err := fn()
		require.Error(t, err)
		assert.True(t, Is(err, original))
		assert.Contains(t, err.Error(), "panic in op: after error")
	})
}
