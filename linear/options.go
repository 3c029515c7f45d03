package linear

// Option is a function that configures LinearRegression
type Option func(*LinearRegression)

// WithFitIntercept sets whether to calculate the intercept
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithAlpha adds an L2 penalty alpha·I to XᵀX (the intercept is not
// penalised). Resampled folds can contain constant dummy columns, which
// makes plain least squares singular.
func WithAlpha(alpha float64) Option {
	return func(lr *LinearRegression) {
		lr.alpha = alpha
	}
}

// WithWorkers sets the number of goroutines used to build the design matrix.
func WithWorkers(n int) Option {
	return func(lr *LinearRegression) {
		lr.workers = n
	}
}
