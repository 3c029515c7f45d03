// Package linear provides an ordinary least squares regressor usable as a
// cross-validation model supplier.
package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/core/model"
	"github.com/YuminosukeSato/smogncv/core/parallel"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// 並列処理の閾値（この値以下の行数では逐次処理を使用）
const parallelThreshold = 1000

// LinearRegression は線形回帰モデル
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool
	alpha        float64
	workers      int

	weights   *mat.VecDense // 重み（係数）
	intercept float64       // 切片
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
		workers:      1,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習させる
// 正規方程式 w = (XᵀX + αI)⁻¹ Xᵀy を使用
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.alpha < 0 {
		return errors.NewConfigurationError("alpha", "must be non-negative", lr.alpha)
	}

	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	p := c + offset

	// X_design = [1, X]
	design := mat.NewDense(r, p, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, lr.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if lr.fitIntercept {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var xtx mat.Dense
	xtx.Mul(design.T(), design)
	for j := offset; j < p; j++ {
		xtx.Set(j, j, xtx.At(j, j)+lr.alpha)
	}

	yVec := mat.NewVecDense(r, mat.Col(nil, 0, y))
	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var xtxInv mat.Dense
	if err := xtxInv.Inverse(&xtx); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	coef := mat.NewVecDense(p, nil)
	coef.MulVec(&xtxInv, &xty)

	lr.intercept = 0
	if lr.fitIntercept {
		lr.intercept = coef.AtVec(0)
	}
	lr.weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.weights.SetVec(j, coef.AtVec(j+offset))
	}

	lr.state.SetFitted(c, r)
	return nil
}

// Predict は入力データに対する予測を行う (y = Xw + b)
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := lr.state.RequireFeatures("LinearRegression.Predict", c); err != nil {
		return nil, err
	}

	var out mat.VecDense
	out.MulVec(X, lr.weights)
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		predictions.Set(i, 0, out.AtVec(i)+lr.intercept)
	}
	return predictions, nil
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Score"); err != nil {
		return 0, err
	}
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	pred, err := metrics.ColumnVector(yPred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, pred)
}

// Coefficients は学習された重み（係数）を返す
func (lr *LinearRegression) Coefficients() []float64 {
	if lr.weights == nil {
		return nil
	}
	return mat.Col(nil, 0, lr.weights)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept
}

// GetParams returns the hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"fit_intercept": lr.fitIntercept,
		"alpha":         lr.alpha,
	}
}
