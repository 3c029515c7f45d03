// Package config loads the YAML run configuration and turns it into the
// options of the resampler, the cross-validation harness and the model.
package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/YuminosukeSato/smogncv/core/model"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/linear"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
	"github.com/YuminosukeSato/smogncv/sklearn/ensemble"
	"github.com/YuminosukeSato/smogncv/sklearn/model_selection"
	"github.com/YuminosukeSato/smogncv/smogn"
)

// Environment variables that override the file.
const (
	EnvLogLevel = "SMOGNCV_LOG_LEVEL"
	EnvWorkers  = "SMOGNCV_WORKERS"
	EnvSeed     = "SMOGNCV_SEED"
)

// Config is the whole run configuration.
type Config struct {
	Data            Data            `yaml:"data"`
	CrossValidation CrossValidation `yaml:"cross_validation"`
	Resampling      Resampling      `yaml:"resampling"`
	Model           Model           `yaml:"model"`
	Diagnostics     Diagnostics     `yaml:"diagnostics"`
	Log             Log             `yaml:"log"`
}

// Data describes the input file and its missing-value policy.
type Data struct {
	Path        string    `yaml:"path"`
	Sheet       string    `yaml:"sheet"`
	Target      string    `yaml:"target"`
	Categorical []string  `yaml:"categorical"`
	Exclude     []string  `yaml:"exclude"`
	NAPolicy    string    `yaml:"na_policy"`
	Sentinels   []float64 `yaml:"sentinels"`
	FillValue   float64   `yaml:"fill_value"`
}

// CrossValidation configures the harness.
type CrossValidation struct {
	Folds         int    `yaml:"folds"`
	Shuffle       bool   `yaml:"shuffle"`
	Seed          uint64 `yaml:"seed"`
	Workers       int    `yaml:"workers"`
	FailurePolicy string `yaml:"failure_policy"`
	// Metric is empty for the model's own Score (R²) or a metrics name.
	Metric string `yaml:"metric"`
}

// Resampling configures the oversampling engine.
type Resampling struct {
	UseResampling        bool    `yaml:"use_resampling"`
	RelevanceThreshold   float64 `yaml:"relevance_threshold"`
	KNeighbors           int     `yaml:"k_neighbors"`
	PerturbationFraction float64 `yaml:"perturbation_fraction"`
	Strategy             string  `yaml:"strategy"`
	NormalizeFeatures    bool    `yaml:"normalize_features"`
	OversampleRatio      float64 `yaml:"oversample_ratio"`
	ExtremeExponent      float64 `yaml:"extreme_exponent"`
	AdaptiveK            bool    `yaml:"adaptive_k"`
	ContinuousWeight     float64 `yaml:"continuous_weight"`
	CategoricalWeight    float64 `yaml:"categorical_weight"`
	Workers              int     `yaml:"workers"`
}

// Model selects and configures the regressor fitted in every fold.
type Model struct {
	// Name is random_forest or linear.
	Name           string  `yaml:"name"`
	NEstimators    int     `yaml:"n_estimators"`
	MaxDepth       int     `yaml:"max_depth"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf"`
	MaxFeatures    int     `yaml:"max_features"`
	Alpha          float64 `yaml:"alpha"`
	Workers        int     `yaml:"workers"`
}

// Diagnostics configures the optional sinks.
type Diagnostics struct {
	PlotDir    string `yaml:"plot_dir"`
	LogNonZero bool   `yaml:"log_nonzero"`
	Buffer     int    `yaml:"buffer"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level"`
	// Format is json, console or cloud.
	Format string `yaml:"format"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	def := smogn.DefaultOptions()
	return &Config{
		Data: Data{
			NAPolicy:  "fill",
			Sentinels: []float64{dataset.DefaultSentinel},
		},
		CrossValidation: CrossValidation{
			Folds:         5,
			Seed:          42,
			Workers:       1,
			FailurePolicy: "abort",
		},
		Resampling: Resampling{
			UseResampling:        true,
			RelevanceThreshold:   def.Threshold,
			KNeighbors:           def.K,
			PerturbationFraction: def.Perturbation,
			Strategy:             def.Strategy.String(),
			NormalizeFeatures:    def.Normalize,
			ExtremeExponent:      def.ExtremeExponent,
			ContinuousWeight:     def.ContinuousWeight,
			CategoricalWeight:    def.CategoricalWeight,
			Workers:              def.Workers,
		},
		Model: Model{
			Name:           "random_forest",
			NEstimators:    100,
			MinSamplesLeaf: 1,
			Workers:        1,
		},
		Diagnostics: Diagnostics{Buffer: 16},
		Log:         Log{Level: "info", Format: "json"},
	}
}

// Parse decodes YAML over Default. Unknown keys are an error.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return cfg, nil
}

// Load reads path, decodes it over Default, applies environment overrides
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the log level, the fold workers and the seed from
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.NewConfigurationError(EnvWorkers, "must be an integer", v)
		}
		c.CrossValidation.Workers = n
	}
	if v, ok := lookup(EnvSeed); ok && v != "" {
		n, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return errors.NewConfigurationError(EnvSeed, "must be a non-negative integer", v)
		}
		c.CrossValidation.Seed = n
	}
	return nil
}

// Validate returns the first ConfigurationError found.
func (c *Config) Validate() error {
	if c.CrossValidation.Folds < 2 {
		return errors.NewConfigurationError("cross_validation.folds", "must be at least 2", c.CrossValidation.Folds)
	}
	if c.CrossValidation.Workers < 0 {
		return errors.NewConfigurationError("cross_validation.workers", "must be >= 0", c.CrossValidation.Workers)
	}
	if _, err := model_selection.ParseFailurePolicy(c.CrossValidation.FailurePolicy); err != nil {
		return err
	}
	if c.CrossValidation.Metric != "" {
		if _, err := metrics.ByName(c.CrossValidation.Metric); err != nil {
			return err
		}
	}
	if _, err := c.EngineOptions(); err != nil {
		return err
	}
	if _, err := c.NAPolicy(); err != nil {
		return err
	}
	if _, err := c.ModelFactory(); err != nil {
		return err
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "json", "console", "cloud":
	default:
		return errors.NewConfigurationError("log.format", "must be json, console or cloud", c.Log.Format)
	}
	return nil
}

// EngineOptions builds validated resampler options. The seed comes from
// cross_validation.seed.
func (c *Config) EngineOptions() (smogn.Options, error) {
	r := c.Resampling
	strategy, err := smogn.ParseStrategy(r.Strategy)
	if err != nil {
		return smogn.Options{}, err
	}
	opts := smogn.Options{
		Strategy:          strategy,
		Threshold:         r.RelevanceThreshold,
		K:                 r.KNeighbors,
		Perturbation:      r.PerturbationFraction,
		OversampleRatio:   r.OversampleRatio,
		ExtremeExponent:   r.ExtremeExponent,
		Normalize:         r.NormalizeFeatures,
		ContinuousWeight:  r.ContinuousWeight,
		CategoricalWeight: r.CategoricalWeight,
		AdaptiveK:         r.AdaptiveK,
		Workers:           r.Workers,
		Seed:              c.CrossValidation.Seed,
	}
	if err := opts.Validate(); err != nil {
		return smogn.Options{}, err
	}
	return opts, nil
}

// NAPolicy builds the missing-value policy. Excluded columns are dropped.
func (c *Config) NAPolicy() (dataset.NAPolicy, error) {
	mode, err := dataset.ParseNAMode(c.Data.NAPolicy)
	if err != nil {
		return dataset.NAPolicy{}, err
	}
	return dataset.NAPolicy{
		Sentinels:   c.Data.Sentinels,
		Mode:        mode,
		FillValue:   c.Data.FillValue,
		DropColumns: c.Data.Exclude,
	}, nil
}

// ReadOptions builds the loader options.
func (c *Config) ReadOptions() dataset.ReadOptions {
	return dataset.ReadOptions{
		Target:      c.Data.Target,
		Categorical: c.Data.Categorical,
		Exclude:     c.Data.Exclude,
		Sheet:       c.Data.Sheet,
	}
}

// ModelFactory returns a factory for the configured regressor.
func (c *Config) ModelFactory() (model.Factory, error) {
	m := c.Model
	switch strings.ToLower(m.Name) {
	case "random_forest", "rf", "":
		if m.NEstimators < 1 {
			return nil, errors.NewConfigurationError("model.n_estimators", "must be at least 1", m.NEstimators)
		}
		seed := c.CrossValidation.Seed
		return func() (model.Model, error) {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithNEstimators(m.NEstimators),
				ensemble.WithMaxDepth(m.MaxDepth),
				ensemble.WithMinSamplesLeaf(m.MinSamplesLeaf),
				ensemble.WithMaxFeatures(m.MaxFeatures),
				ensemble.WithRandomState(seed),
				ensemble.WithWorkers(m.Workers),
			), nil
		}, nil
	case "linear", "ridge":
		if m.Alpha < 0 {
			return nil, errors.NewConfigurationError("model.alpha", "must be non-negative", m.Alpha)
		}
		return func() (model.Model, error) {
			return linear.NewLinearRegression(linear.WithAlpha(m.Alpha), linear.WithWorkers(m.Workers)), nil
		}, nil
	default:
		return nil, errors.NewConfigurationError("model.name", "must be random_forest or linear", m.Name)
	}
}

// CrossValidatorOptions builds the harness options. resampler and sink may
// be nil; the resampler is only attached when use_resampling is set.
func (c *Config) CrossValidatorOptions(resampler model_selection.Resampler, logger log.Logger) ([]model_selection.Option, error) {
	policy, err := model_selection.ParseFailurePolicy(c.CrossValidation.FailurePolicy)
	if err != nil {
		return nil, err
	}
	opts := []model_selection.Option{
		model_selection.WithFolds(c.CrossValidation.Folds),
		model_selection.WithShuffle(c.CrossValidation.Shuffle),
		model_selection.WithSeed(c.CrossValidation.Seed),
		model_selection.WithWorkers(c.CrossValidation.Workers),
		model_selection.WithFailurePolicy(policy),
		model_selection.WithLogger(logger),
	}
	if c.Resampling.UseResampling && resampler != nil {
		opts = append(opts, model_selection.WithResampler(resampler))
	}
	if c.CrossValidation.Metric != "" {
		f, err := metrics.ByName(c.CrossValidation.Metric)
		if err != nil {
			return nil, err
		}
		opts = append(opts, model_selection.WithMetric(c.CrossValidation.Metric, f))
	}
	return opts, nil
}

// Logger builds the configured logger writing to w. The console format
// always writes to stderr.
func (c *Config) Logger(w io.Writer) (log.Logger, error) {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, err
	}
	switch c.Log.Format {
	case "console":
		return log.NewConsoleLogger(level), nil
	case "cloud":
		return log.NewSlogLogger(slog.New(log.NewCloudHandler(w, level))), nil
	case "json", "":
		return log.NewZerologLogger(w, level), nil
	default:
		return nil, errors.NewConfigurationError("log.format", "must be json, console or cloud", c.Log.Format)
	}
}
