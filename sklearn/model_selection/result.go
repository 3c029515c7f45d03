package model_selection

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/smogncv/smogn"
)

// FoldState is the furthest step a fold reached.
type FoldState int

const (
	Pending FoldState = iota
	Split
	Resampled
	Fitted
	Scored
	Failed
	Cancelled
)

func (s FoldState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Split:
		return "split"
	case Resampled:
		return "resampled"
	case Fitted:
		return "fitted"
	case Scored:
		return "scored"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// FoldResult describes one fold of a run.
type FoldResult struct {
	Index int
	State FoldState
	Score float64

	// TrainSize and TestSize are the split sizes; FitSize is the number of
	// rows the model was trained on after resampling.
	TrainSize int
	TestSize  int
	FitSize   int
	Synthetic int

	// UsedFallback is set when resampling failed and the fold was fitted
	// on the raw training partition. ResampleErr holds the cause.
	UsedFallback bool
	ResampleErr  error

	// Report is nil when the fold was not resampled.
	Report *smogn.Report

	Err      error
	Duration time.Duration
}

// CVResult is the outcome of one cross-validation run. Folds are in fold
// order. A run stopped early keeps the folds that were already scored and
// has Complete set to false.
type CVResult struct {
	RunID    uuid.UUID
	Folds    []FoldResult
	Complete bool
	Duration time.Duration

	err error
}

// Scores returns the scores of the scored folds in fold order.
func (r *CVResult) Scores() []float64 {
	out := make([]float64, 0, len(r.Folds))
	for _, f := range r.Folds {
		if f.State == Scored {
			out = append(out, f.Score)
		}
	}
	return out
}

// Mean of Scores, NaN when nothing was scored.
func (r *CVResult) Mean() float64 {
	s := r.Scores()
	if len(s) == 0 {
		return math.NaN()
	}
	return stat.Mean(s, nil)
}

// Std is the population standard deviation of Scores, NaN when nothing
// was scored.
func (r *CVResult) Std() float64 {
	s := r.Scores()
	if len(s) == 0 {
		return math.NaN()
	}
	return math.Sqrt(stat.PopVariance(s, nil))
}

// Err returns the error that stopped the run, or nil.
func (r *CVResult) Err() error { return r.err }

// Counts returns how many folds ended in each state.
func (r *CVResult) Counts() map[FoldState]int {
	out := make(map[FoldState]int)
	for _, f := range r.Folds {
		out[f.State]++
	}
	return out
}
