// Package metrics provides regression scores for cross-validation folds.
package metrics

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Func scores predictions against true values. Higher is better.
type Func func(yTrue, yPred *mat.VecDense) (float64, error)

func checkPair(op string, yTrue, yPred *mat.VecDense) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	diff := mat.NewVecDense(n, nil)
	diff.SubVec(yTrue, yPred)
	return mat.Dot(diff, diff) / float64(n), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	diff := make([]float64, n)
	floats.SubTo(diff, rawVec(yTrue), rawVec(yPred))
	return floats.Norm(diff, 1) / float64(n), nil
}

// R2Score は決定係数（R²）を計算する
//
// A test split whose targets are all equal (common with zero-inflated
// counts) has no variance. R² is then 1 for a perfect prediction and 0
// otherwise, and an UndefinedMetricWarning is raised.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	truth := rawVec(yTrue)
	yMean := stat.Mean(truth, nil)

	var tss, rss float64
	for i := 0; i < n; i++ {
		d := truth[i] - yMean
		r := truth[i] - yPred.AtVec(i)
		tss += d * d
		rss += r * r
	}

	if tss == 0 {
		result := 0.0
		if rss == 0 {
			result = 1.0
		}
		errors.Warn(errors.NewUndefinedMetricWarning("r2", "zero variance in y_true", result))
		return result, nil
	}

	// R² = 1 - RSS/TSS
	return 1 - rss/tss, nil
}

// NegMSE, NegRMSE and NegMAE flip the error metrics so that higher is better.
func NegMSE(yTrue, yPred *mat.VecDense) (float64, error)  { return negate(MSE(yTrue, yPred)) }
func NegRMSE(yTrue, yPred *mat.VecDense) (float64, error) { return negate(RMSE(yTrue, yPred)) }
func NegMAE(yTrue, yPred *mat.VecDense) (float64, error)  { return negate(MAE(yTrue, yPred)) }

func negate(v float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	return -v, nil
}

var registry = map[string]Func{
	"r2":                          R2Score,
	"neg_mean_squared_error":      NegMSE,
	"neg_root_mean_squared_error": NegRMSE,
	"neg_mean_absolute_error":     NegMAE,
}

// ByName returns the scorer registered under name.
func ByName(name string) (Func, error) {
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, errors.NewConfigurationError("metric", "unknown metric, expected one of "+strings.Join(Names(), ", "), name)
	}
	return f, nil
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ColumnVector copies an n×1 matrix into a vector.
func ColumnVector(m mat.Matrix) (*mat.VecDense, error) {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError("ColumnVector", "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError("ColumnVector", "must be a column vector (n×1 matrix)")
	}
	return mat.NewVecDense(r, mat.Col(nil, 0, m)), nil
}

// MSEMatrix は行列形式 (n×1) の入力に対してMSEを計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, _ := yTrue.Dims()
	rPred, _ := yPred.Dims()
	if rTrue != rPred {
		return 0, errors.NewDimensionError("MSEMatrix", rTrue, rPred, 0)
	}
	t, err := ColumnVector(yTrue)
	if err != nil {
		return 0, err
	}
	p, err := ColumnVector(yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

func rawVec(v *mat.VecDense) []float64 {
	return mat.Col(nil, 0, v)
}
