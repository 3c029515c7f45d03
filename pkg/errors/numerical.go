package errors

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
)

// NumericalInstabilityError は数値が有限でない (NaN, Inf) 場合のエラーです。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "smogn.Resample"）
	Values    []float64 // 問題のある値
	Index     int       // 最初に見つかった非有限値の位置
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("smogncv: non-finite value detected in %s at index %d. Values: [%s]",
		e.Operation, e.Index, valStr)
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, index int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Index:     index,
	}
	return errors.WithStack(err)
}

// CheckFinite returns a NumericalInstabilityError when values contain NaN or Inf.
func CheckFinite(operation string, values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return NewNumericalInstabilityError(operation, []float64{v}, i)
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns fallback if denominator is zero or close to zero.
func SafeDivide(numerator, denominator, fallback float64) float64 {
	if math.Abs(denominator) < 1e-12 {
		return fallback
	}
	return numerator / denominator
}
