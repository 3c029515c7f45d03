package tree

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree. 0 grows until the other
// stopping rules apply.
func WithMaxDepth(d int) Option {
	return func(t *DecisionTreeRegressor) { t.maxDepth = d }
}

// WithMinSamplesSplit is the smallest node that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesSplit = n }
}

// WithMinSamplesLeaf is the smallest child a split may produce.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.minSamplesLeaf = n }
}

// WithMaxFeatures draws this many candidate features at every split.
func WithMaxFeatures(k int) Option {
	return func(t *DecisionTreeRegressor) { t.maxFeatures = k }
}

// WithRandomState seeds the feature sampling.
func WithRandomState(seed uint64) Option {
	return func(t *DecisionTreeRegressor) { t.seed = seed }
}
