// Standard attribute keys shared by the resampler, the cross-validation
// harness and the diagnostics sinks. Keys follow a dotted hierarchy so
// that log analysis can filter on a prefix ("cv.", "smogn.").

package log

// Run and fold context.
const (
	// RunIDKey identifies one cross-validation run (a UUID string).
	RunIDKey = "cv.run_id"

	// FoldKey is the zero-based fold index.
	FoldKey = "cv.fold"

	// FoldStateKey records the fold state reached (split, resampled, fitted, ...).
	FoldStateKey = "cv.fold_state"

	// FallbackKey is true when a fold trained on the raw split after the
	// resampler reported insufficient data.
	FallbackKey = "cv.fallback"

	// ComponentKey identifies the package emitting the record.
	// Examples: "smogn", "model_selection", "diagnostics"
	ComponentKey = "component"

	// OperationKey specifies the operation being performed.
	OperationKey = "operation"

	// ModelNameKey identifies the regression model type.
	ModelNameKey = "model.name"
)

// Data shape.
const (
	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// TrainSizeKey and TestSizeKey are the fold split sizes before resampling.
	TrainSizeKey = "data.train_size"
	TestSizeKey  = "data.test_size"
)

// Resampling.
const (
	// StratumKey names a stratum: rare_low, normal or rare_high.
	StratumKey = "smogn.stratum"

	// SyntheticKey is the number of synthetic rows generated.
	SyntheticKey = "smogn.synthetic"

	// DroppedKey is the number of normal rows removed by undersampling.
	DroppedKey = "smogn.dropped"

	// EffectiveKKey is the neighbour count actually used.
	EffectiveKKey = "smogn.k"

	// ThresholdKey is the relevance threshold.
	ThresholdKey = "smogn.threshold"

	// StrategyKey is "balance" or "extreme".
	StrategyKey = "smogn.strategy"

	// NonZeroBeforeKey and NonZeroAfterKey count rows with a non-zero target.
	NonZeroBeforeKey = "smogn.nonzero_before"
	NonZeroAfterKey  = "smogn.nonzero_after"
)

// Metrics, timing and configuration.
const (
	// ScoreKey records a per-fold score.
	ScoreKey = "metrics.score"

	// MeanScoreKey and StdScoreKey summarise a run.
	MeanScoreKey = "metrics.mean"
	StdScoreKey  = "metrics.std"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey is the configured concurrency limit.
	WorkersKey = "config.workers"

	// RandomSeedKey records the seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	// ErrorTypeKey categorizes the error encountered.
	// Examples: "ConfigurationError", "InsufficientDataError", "ModelFitError"
	ErrorTypeKey = "error.type"
)

// Standard attribute values.
const (
	OperationSplit    = "split"
	OperationResample = "resample"
	OperationFit      = "fit"
	OperationPredict  = "predict"
	OperationScore    = "score"
	OperationEvaluate = "evaluate"
)
