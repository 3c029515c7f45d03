// Package ensemble provides a random forest regressor built from bootstrap
// CART trees. It is the default model supplier for cross-validation runs.
package ensemble

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/core/model"
	"github.com/YuminosukeSato/smogncv/core/parallel"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/sklearn/tree"
)

// RandomForestRegressor averages the predictions of NEstimators trees, each
// grown on its own bootstrap sample with its own seed.
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators     int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	bootstrap       bool
	seed            uint64
	workers         int

	trees []*tree.DecisionTreeRegressor
}

// Option configures a RandomForestRegressor.
type Option func(*RandomForestRegressor)

// WithNEstimators sets the number of trees.
func WithNEstimators(n int) Option {
	return func(rf *RandomForestRegressor) { rf.nEstimators = n }
}

// WithMaxDepth limits every tree; 0 grows them fully.
func WithMaxDepth(d int) Option {
	return func(rf *RandomForestRegressor) { rf.maxDepth = d }
}

// WithMinSamplesSplit is the smallest node a tree will still split.
func WithMinSamplesSplit(n int) Option {
	return func(rf *RandomForestRegressor) { rf.minSamplesSplit = n }
}

// WithMinSamplesLeaf is the fewest rows a leaf may hold.
func WithMinSamplesLeaf(n int) Option {
	return func(rf *RandomForestRegressor) { rf.minSamplesLeaf = n }
}

// WithMaxFeatures is the number of features drawn per split; 0 uses all.
func WithMaxFeatures(k int) Option {
	return func(rf *RandomForestRegressor) { rf.maxFeatures = k }
}

// WithBootstrap toggles sampling with replacement. Without it every tree
// sees the whole training set.
func WithBootstrap(b bool) Option {
	return func(rf *RandomForestRegressor) { rf.bootstrap = b }
}

// WithRandomState seeds the forest. Per-tree seeds, and through them the
// bootstrap draws and feature sampling, are derived from it.
func WithRandomState(seed uint64) Option {
	return func(rf *RandomForestRegressor) { rf.seed = seed }
}

// WithWorkers bounds the goroutines growing trees and predicting; 0 means
// one per CPU. Results do not depend on it.
func WithWorkers(n int) Option { return func(rf *RandomForestRegressor) { rf.workers = n } }

// NewRandomForestRegressor returns a forest of 100 fully grown trees with
// bootstrap sampling, every feature considered at each split.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:           model.NewStateManager(),
		nEstimators:     100,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		bootstrap:       true,
		workers:         1,
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit grows the trees. Per-tree seeds are drawn sequentially from the
// forest seed before any tree starts, so the fitted forest is the same for
// every worker count.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewConfigurationError("n_estimators", "must be at least 1", rf.nEstimators)
	}
	if rf.workers < 0 {
		return errors.NewConfigurationError("workers", "must be >= 0", rf.workers)
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("RandomForestRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := metrics.ColumnVector(y)
	if err != nil {
		return err
	}
	if yv.Len() != r {
		return errors.NewDimensionError("RandomForestRegressor.Fit", r, yv.Len(), 0)
	}
	rows := tree.Rows(X)
	targets := mat.Col(nil, 0, yv)

	rng := rand.New(rand.NewPCG(rf.seed, rf.seed))
	seeds := make([]uint64, rf.nEstimators)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}

	trees := make([]*tree.DecisionTreeRegressor, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.ForEach(rf.nEstimators, rf.workers, func(i int) {
		trng := rand.New(rand.NewPCG(seeds[i], uint64(i)))
		sample := make([]int, r)
		for j := range sample {
			if rf.bootstrap {
				sample[j] = trng.IntN(r)
			} else {
				sample[j] = j
			}
		}
		t := tree.NewDecisionTreeRegressor(
			tree.WithMaxDepth(rf.maxDepth),
			tree.WithMinSamplesSplit(rf.minSamplesSplit),
			tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
			tree.WithMaxFeatures(rf.maxFeatures),
			tree.WithRandomState(trng.Uint64()),
		)
		errs[i] = t.FitSample(rows, targets, sample)
		trees[i] = t
	})
	for i, err := range errs {
		if err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}

	rf.trees = trees
	rf.state.SetFitted(c, r)
	return nil
}

// Predict returns the mean tree prediction per row as an n×1 matrix.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestRegressor.Predict", c); err != nil {
		return nil, err
	}
	rows := tree.Rows(X)
	out := make([]float64, r)
	parallel.ParallelizeWithThreshold(r, 256, rf.workers, func(start, end int) {
		for i := start; i < end; i++ {
			var s float64
			for _, t := range rf.trees {
				s += t.PredictRow(rows[i])
			}
			out[i] = s / float64(len(rf.trees))
		}
	})
	return mat.NewDense(r, 1, out), nil
}

// Score returns R² on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector(pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// IsFitted reports whether Fit succeeded.
func (rf *RandomForestRegressor) IsFitted() bool { return rf.state.IsFitted() }

// Trees returns the fitted trees.
func (rf *RandomForestRegressor) Trees() []*tree.DecisionTreeRegressor { return rf.trees }

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.seed,
	}
}
