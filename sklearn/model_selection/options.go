package model_selection

import (
	"strings"

	"github.com/YuminosukeSato/smogncv/diagnostics"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

// FailurePolicy decides what a fold does when resampling fails.
type FailurePolicy int

const (
	// Abort fails the fold and cancels the remaining ones.
	Abort FailurePolicy = iota
	// FallbackToRaw fits on the raw training partition and flags the fold.
	FallbackToRaw
)

func (p FailurePolicy) String() string {
	switch p {
	case Abort:
		return "abort"
	case FallbackToRaw:
		return "fallback"
	default:
		return "unknown"
	}
}

// ParseFailurePolicy parses "abort" or "fallback".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "abort", "":
		return Abort, nil
	case "fallback", "fallback_to_raw", "raw":
		return FallbackToRaw, nil
	default:
		return Abort, errors.NewConfigurationError("failure_policy", "must be abort or fallback", s)
	}
}

// Option configures a CrossValidator.
type Option func(*CrossValidator)

// WithFolds sets the number of folds (default 5).
func WithFolds(n int) Option {
	return func(cv *CrossValidator) { cv.folds = n }
}

// WithShuffle permutes rows once before splitting.
func WithShuffle(shuffle bool) Option {
	return func(cv *CrossValidator) { cv.shuffle = shuffle }
}

// WithSeed sets the base seed. Fold i resamples with seed+i.
func WithSeed(seed uint64) Option {
	return func(cv *CrossValidator) { cv.seed = seed }
}

// WithResampler enables resampling of every training partition. A nil
// resampler disables it.
func WithResampler(r Resampler) Option {
	return func(cv *CrossValidator) { cv.resampler = r }
}

// WithFailurePolicy selects what happens when resampling a fold fails.
func WithFailurePolicy(p FailurePolicy) Option {
	return func(cv *CrossValidator) { cv.policy = p }
}

// WithWorkers bounds the folds evaluated concurrently (default 1).
// 0 means one per CPU.
func WithWorkers(n int) Option {
	return func(cv *CrossValidator) { cv.workers = n }
}

// WithSink receives each resampled fold's target distributions.
func WithSink(s diagnostics.Sink) Option {
	return func(cv *CrossValidator) { cv.sink = s }
}

// WithLogger sets the logger; the default discards.
func WithLogger(l log.Logger) Option {
	return func(cv *CrossValidator) {
		if l != nil {
			cv.logger = l
		}
	}
}

// WithMetric scores folds with f on the model's predictions instead of the
// model's own Score. The model must implement model.Predictor.
func WithMetric(name string, f metrics.Func) Option {
	return func(cv *CrossValidator) {
		cv.metricName = name
		cv.metric = f
	}
}
