// Package tree provides a CART regression tree. Splits minimise the summed
// squared error of the two children; leaves predict the mean target.
package tree

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/smogncv/core/model"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

type node struct {
	leaf      bool
	feature   int
	threshold float64 // x <= threshold goes left
	value     float64
	samples   int
	left      *node
	right     *node
}

// DecisionTreeRegressor is a CART regressor.
type DecisionTreeRegressor struct {
	state *model.StateManager

	maxDepth        int // 0: unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int // 0: all features at every split
	seed            uint64

	root   *node
	depth  int
	leaves int
}

// NewDecisionTreeRegressor returns a tree with sklearn-like defaults.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state:           model.NewStateManager(),
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *DecisionTreeRegressor) validate() error {
	switch {
	case t.maxDepth < 0:
		return errors.NewConfigurationError("max_depth", "must be >= 0 (0 means unlimited)", t.maxDepth)
	case t.minSamplesSplit < 2:
		return errors.NewConfigurationError("min_samples_split", "must be at least 2", t.minSamplesSplit)
	case t.minSamplesLeaf < 1:
		return errors.NewConfigurationError("min_samples_leaf", "must be at least 1", t.minSamplesLeaf)
	case t.maxFeatures < 0:
		return errors.NewConfigurationError("max_features", "must be >= 0 (0 means all)", t.maxFeatures)
	}
	return nil
}

// Rows copies X into row slices.
func Rows(X mat.Matrix) [][]float64 {
	r, c := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = make([]float64, c)
		for j := range out[i] {
			out[i][j] = X.At(i, j)
		}
	}
	return out
}

// Fit grows the tree on all rows of X.
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	yv, err := metrics.ColumnVector(y)
	if err != nil {
		return err
	}
	if yv.Len() != r {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", r, yv.Len(), 0)
	}
	sample := make([]int, r)
	for i := range sample {
		sample[i] = i
	}
	return t.FitSample(Rows(X), mat.Col(nil, 0, yv), sample)
}

// FitSample grows the tree on x[sample], y[sample]. sample may repeat
// indices, as a bootstrap draw does. x and y are not modified.
func (t *DecisionTreeRegressor) FitSample(x [][]float64, y []float64, sample []int) error {
	if err := t.validate(); err != nil {
		return err
	}
	if len(sample) == 0 || len(x) == 0 {
		return errors.NewModelError("DecisionTreeRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(x) != len(y) {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", len(x), len(y), 0)
	}
	if err := errors.CheckFinite("DecisionTreeRegressor.Fit", y); err != nil {
		return err
	}

	b := &builder{
		tree:     t,
		x:        x,
		y:        y,
		features: len(x[0]),
		rng:      rand.New(rand.NewPCG(t.seed, t.seed^0x9e3779b97f4a7c15)),
	}
	t.depth, t.leaves = 0, 0
	t.root = b.grow(slices.Clone(sample), 0)
	t.state.SetFitted(b.features, len(sample))
	return nil
}

type builder struct {
	tree     *DecisionTreeRegressor
	x        [][]float64
	y        []float64
	features int
	rng      *rand.Rand
}

func (b *builder) grow(idx []int, depth int) *node {
	t := b.tree
	n := &node{samples: len(idx), value: b.mean(idx)}
	t.depth = max(t.depth, depth)

	if len(idx) < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) || b.pure(idx) {
		n.leaf = true
		t.leaves++
		return n
	}
	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		n.leaf = true
		t.leaves++
		return n
	}

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	n.feature = feature
	n.threshold = threshold
	n.left = b.grow(left, depth+1)
	n.right = b.grow(right, depth+1)
	return n
}

func (b *builder) mean(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += b.y[i]
	}
	return s / float64(len(idx))
}

func (b *builder) pure(idx []int) bool {
	first := b.y[idx[0]]
	for _, i := range idx[1:] {
		if b.y[i] != first {
			return false
		}
	}
	return true
}

func (b *builder) candidates() []int {
	k := b.tree.maxFeatures
	if k <= 0 || k >= b.features {
		all := make([]int, b.features)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return b.rng.Perm(b.features)[:k]
}

// bestSplit maximises sumL²/nL + sumR²/nR, which is equivalent to
// minimising the children's summed squared error. Ties keep the first
// candidate found.
func (b *builder) bestSplit(idx []int) (feature int, threshold float64, ok bool) {
	minLeaf := b.tree.minSamplesLeaf
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.y[i]
	}
	best := total * total / float64(n)
	const eps = 1e-12

	sorted := slices.Clone(idx)
	for _, j := range b.candidates() {
		slices.SortStableFunc(sorted, func(a, c int) int {
			switch {
			case b.x[a][j] < b.x[c][j]:
				return -1
			case b.x[a][j] > b.x[c][j]:
				return 1
			}
			return 0
		})

		var left float64
		for pos := 0; pos < n-1; pos++ {
			left += b.y[sorted[pos]]
			nl := pos + 1
			nr := n - nl
			lo, hi := b.x[sorted[pos]][j], b.x[sorted[pos+1]][j]
			if lo == hi || nl < minLeaf || nr < minLeaf {
				continue
			}
			right := total - left
			gain := left*left/float64(nl) + right*right/float64(nr)
			if gain > best+eps {
				best = gain
				feature = j
				threshold = lo + (hi-lo)/2
				ok = true
			}
		}
	}
	return feature, threshold, ok
}

// PredictRow walks the tree for one row.
func (t *DecisionTreeRegressor) PredictRow(row []float64) float64 {
	n := t.root
	for !n.leaf {
		if row[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

// Predict returns an n×1 matrix of predictions.
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := t.state.RequireFeatures("DecisionTreeRegressor.Predict", c); err != nil {
		return nil, err
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, t.PredictRow(row))
	}
	return out, nil
}

// Score returns R² on X, y.
func (t *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := t.Predict(X)
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
func (t *DecisionTreeRegressor) IsFitted() bool { return t.state.IsFitted() }

// Depth is the depth of the deepest leaf (a single leaf has depth 0).
func (t *DecisionTreeRegressor) Depth() int { return t.depth }

// NumLeaves is the number of leaves.
func (t *DecisionTreeRegressor) NumLeaves() int { return t.leaves }

// GetParams returns the hyperparameters.
func (t *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         t.maxDepth,
		"min_samples_split": t.minSamplesSplit,
		"min_samples_leaf":  t.minSamplesLeaf,
		"max_features":      t.maxFeatures,
		"random_state":      t.seed,
	}
}
