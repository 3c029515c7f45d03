// Package model defines the contracts between the cross-validation harness
// and the regression models it evaluates.
package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer はスコアを計算できるモデルのインターフェース
type Scorer interface {
	// Score returns a goodness-of-fit value where higher is better.
	Score(X, y mat.Matrix) (float64, error)
}

// Model is what a cross-validation fold needs: train on the (possibly
// resampled) training split, then score on the untouched test split.
type Model interface {
	Fitter
	Scorer
}

// Regressor combines interfaces for regression models.
type Regressor interface {
	Fitter
	Predictor
	Scorer
}

// Factory builds a fresh, unfitted model. The harness calls it once per
// fold so that no fitted state crosses fold boundaries.
type Factory func() (Model, error)

// ParameterGetter is implemented by models that expose their hyperparameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}

// Params returns m's hyperparameters, or nil when m does not expose them.
func Params(m Model) map[string]interface{} {
	if pg, ok := m.(ParameterGetter); ok {
		return pg.GetParams()
	}
	return nil
}
