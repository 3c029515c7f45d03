package smogn

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Strategy decides how far rare strata are grown.
type Strategy int

const (
	// Balance brings every stratum to roughly the same size.
	Balance Strategy = iota
	// Extreme grows rare strata past the normal one, more so for smaller strata.
	Extreme
)

func (s Strategy) String() string {
	switch s {
	case Balance:
		return "balance"
	case Extreme:
		return "extreme"
	default:
		return "unknown"
	}
}

// ParseStrategy parses "balance" or "extreme".
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "balance", "":
		return Balance, nil
	case "extreme":
		return Extreme, nil
	default:
		return Balance, errors.NewConfigurationError("strategy", "must be balance or extreme", s)
	}
}

// Options configures the oversampling engine.
type Options struct {
	Strategy Strategy
	// Threshold is the relevance at or above which a row is rare.
	Threshold float64
	// K is the number of neighbours per rare row.
	K int
	// Perturbation bounds the interpolation factor U(0, Perturbation); it must
	// lie in the open interval (0, 1).
	Perturbation float64
	// OversampleRatio, when > 0, sets each rare stratum's target size to
	// round(size·ratio) instead of the strategy's.
	OversampleRatio float64
	// ExtremeExponent is γ in T·(T/|b|)^γ for the extreme strategy.
	ExtremeExponent float64

	Normalize         bool
	ContinuousWeight  float64
	CategoricalWeight float64

	// AdaptiveK lowers k to |stratum|−1 instead of failing when a rare
	// stratum has K or fewer rows.
	AdaptiveK bool

	// Workers bounds the goroutines used for neighbour search and
	// synthesis; 0 means one per CPU. Output does not depend on it.
	Workers int

	// Seed is used by Resample; Engine.Resample takes the seed explicitly.
	Seed uint64
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		Strategy:          Balance,
		Threshold:         0.1,
		K:                 5,
		Perturbation:      0.05,
		ExtremeExponent:   0.5,
		Normalize:         true,
		ContinuousWeight:  1,
		CategoricalWeight: 1,
		Workers:           1,
	}
}

// Validate returns a ConfigurationError for the first invalid field.
func (o Options) Validate() error {
	if err := ValidateThreshold(o.Threshold); err != nil {
		return err
	}
	switch {
	case o.Strategy != Balance && o.Strategy != Extreme:
		return errors.NewConfigurationError("strategy", "must be balance or extreme", int(o.Strategy))
	case o.K < 1:
		return errors.NewConfigurationError("k_neighbors", "must be at least 1", o.K)
	case !(o.Perturbation > 0 && o.Perturbation < 1):
		return errors.NewConfigurationError("perturbation_fraction", "must be in the open interval (0, 1)", o.Perturbation)
	case o.OversampleRatio != 0 && !(o.OversampleRatio >= 1) || math.IsInf(o.OversampleRatio, 0):
		return errors.NewConfigurationError("oversample_ratio", "must be 0 (strategy decides) or a finite value >= 1", o.OversampleRatio)
	case !(o.ExtremeExponent > 0) || math.IsInf(o.ExtremeExponent, 0):
		return errors.NewConfigurationError("extreme_exponent", "must be positive and finite", o.ExtremeExponent)
	case o.ContinuousWeight < 0 || o.CategoricalWeight < 0 || o.ContinuousWeight+o.CategoricalWeight == 0:
		return errors.NewConfigurationError("distance_weights", "must be non-negative and not both zero",
			[2]float64{o.ContinuousWeight, o.CategoricalWeight})
	case o.Workers < 0:
		return errors.NewConfigurationError("workers", "must be >= 0", o.Workers)
	}
	return nil
}

func (o Options) distance() DistanceOptions {
	return DistanceOptions{
		Normalize:         o.Normalize,
		ContinuousWeight:  o.ContinuousWeight,
		CategoricalWeight: o.CategoricalWeight,
	}
}
