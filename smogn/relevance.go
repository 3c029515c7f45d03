// Package smogn implements relevance-driven synthetic oversampling for
// regression targets with rare extreme values (SMOGN-style).
//
// A target value's relevance in [0, 1] is derived from the box plot of the
// training targets. Rows whose relevance reaches a threshold are rare; they
// are split into a low and a high stratum around the median. Rare strata are
// grown with synthetic rows interpolated between a row and one of its
// nearest neighbours in the same stratum, and the normal stratum is
// under-sampled.
package smogn

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/YuminosukeSato/smogncv/pkg/errors"
)

// Label is the stratum a target value falls into.
type Label int

const (
	RareLow Label = iota
	Normal
	RareHigh
)

// Labels lists all strata in processing order.
var Labels = [...]Label{RareLow, Normal, RareHigh}

func (l Label) String() string {
	switch l {
	case RareLow:
		return "rare_low"
	case Normal:
		return "normal"
	case RareHigh:
		return "rare_high"
	default:
		return "unknown"
	}
}

// IsRare reports whether l is one of the rare strata.
func (l Label) IsRare() bool { return l != Normal }

// BoxPlotStats is the five-number summary used as relevance control points.
// Whiskers are the most extreme data values within 1.5·IQR of the quartiles.
type BoxPlotStats struct {
	LowerWhisker float64
	Q1           float64
	Median       float64
	Q3           float64
	UpperWhisker float64

	// LowExtremes and HighExtremes are true when some value lies beyond
	// the corresponding whisker.
	LowExtremes  bool
	HighExtremes bool
}

// ComputeBoxPlotStats summarises y. It needs at least two finite values.
func ComputeBoxPlotStats(y []float64) (BoxPlotStats, error) {
	if len(y) < 2 {
		return BoxPlotStats{}, errors.NewInsufficientDataError("smogn.ComputeBoxPlotStats", "target", len(y), 2)
	}
	if err := errors.CheckFinite("smogn.ComputeBoxPlotStats", y); err != nil {
		return BoxPlotStats{}, err
	}

	q, err := stats.Quartile(stats.Float64Data(y))
	if err != nil {
		return BoxPlotStats{}, errors.Wrap(err, "quartiles")
	}
	median, err := stats.Median(stats.Float64Data(y))
	if err != nil {
		return BoxPlotStats{}, errors.Wrap(err, "median")
	}

	iqr := q.Q3 - q.Q1
	lowFence := q.Q1 - 1.5*iqr
	highFence := q.Q3 + 1.5*iqr

	bs := BoxPlotStats{
		Q1:           q.Q1,
		Median:       median,
		Q3:           q.Q3,
		LowerWhisker: math.Inf(1),
		UpperWhisker: math.Inf(-1),
	}
	for _, v := range y {
		if v >= lowFence && v < bs.LowerWhisker {
			bs.LowerWhisker = v
		}
		if v <= highFence && v > bs.UpperWhisker {
			bs.UpperWhisker = v
		}
	}
	if math.IsInf(bs.LowerWhisker, 0) {
		bs.LowerWhisker = q.Q1
	}
	if math.IsInf(bs.UpperWhisker, 0) {
		bs.UpperWhisker = q.Q3
	}
	for _, v := range y {
		if v < bs.LowerWhisker {
			bs.LowExtremes = true
		}
		if v > bs.UpperWhisker {
			bs.HighExtremes = true
		}
	}
	return bs, nil
}

// Relevance maps a target value to [0, 1]. It is fitted once per
// resampling pass and is read-only afterwards.
type Relevance struct {
	stats BoxPlotStats
}

// FitRelevance computes the box-plot summary of y.
func FitRelevance(y []float64) (*Relevance, error) {
	bs, err := ComputeBoxPlotStats(y)
	if err != nil {
		return nil, err
	}
	return &Relevance{stats: bs}, nil
}

// Stats returns the fitted summary.
func (r *Relevance) Stats() BoxPlotStats { return r.stats }

// Score returns the relevance of v.
//
// Relevance is 0 at the median. On a side with extremes it follows the
// zero-slope cubic step 3t²−2t³ from the median (t=0) to the whisker (t=1)
// and is 1 beyond. A side without extremes is all 0. When the whisker
// coincides with the median, every value past the median scores 1.
func (r *Relevance) Score(v float64) float64 {
	m := r.stats.Median
	switch {
	case v > m:
		return step(v, m, r.stats.UpperWhisker, r.stats.HighExtremes)
	case v < m:
		return step(v, m, r.stats.LowerWhisker, r.stats.LowExtremes)
	default:
		return 0
	}
}

func step(v, median, whisker float64, extremes bool) float64 {
	if !extremes {
		return 0
	}
	span := whisker - median
	if span == 0 {
		return 1
	}
	t := (v - median) / span
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// IsRare reports whether Score(v) reaches threshold t.
func (r *Relevance) IsRare(v, t float64) bool {
	return r.Score(v) >= t
}

// Label assigns v to a stratum for threshold t.
func (r *Relevance) Label(v, t float64) Label {
	if !r.IsRare(v, t) {
		return Normal
	}
	if v < r.stats.Median {
		return RareLow
	}
	return RareHigh
}

// ValidateThreshold rejects thresholds outside the open interval (0, 1).
func ValidateThreshold(t float64) error {
	if !(t > 0 && t < 1) {
		return errors.NewConfigurationError("relevance_threshold", "must be in the open interval (0, 1)", t)
	}
	return nil
}
