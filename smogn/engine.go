package smogn

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/YuminosukeSato/smogncv/core/parallel"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

// StratumReport describes one stratum before and after resampling.
type StratumReport struct {
	Label     Label
	Before    int
	After     int
	Synthetic int
	// Removed counts rows dropped by under-sampling (normal stratum only).
	Removed int
	// K is the neighbour count used; 0 when nothing was synthesised.
	K int
	// Skipped is set when AdaptiveK left a rare stratum with fewer than
	// two rows untouched.
	Skipped bool
}

// Report is the diagnostic record of one resampling pass. It is returned as
// a value; writing it anywhere is up to the caller.
type Report struct {
	Strategy  Strategy
	Threshold float64
	Seed      uint64
	Stats     BoxPlotStats
	Strata    []StratumReport // RareLow, Normal, RareHigh

	Synthetic int
	// Invalid counts synthetic rows removed because they held non-finite
	// values. They are not part of any stratum's Synthetic or After.
	Invalid int

	TargetsBefore []float64
	TargetsAfter  []float64
	NonZeroBefore int
	NonZeroAfter  int

	Duration time.Duration
}

// Stratum returns the report for l.
func (r Report) Stratum(l Label) StratumReport {
	for _, s := range r.Strata {
		if s.Label == l {
			return s
		}
	}
	return StratumReport{Label: l}
}

// Result is the resampled training set and its report.
type Result struct {
	Data   *dataset.Dataset
	Report Report
}

// Engine runs the oversampling pipeline. It holds no per-call state, so one
// Engine may serve concurrent folds.
type Engine struct {
	opts   Options
	logger log.Logger
}

// NewEngine validates opts. A nil logger discards output.
func NewEngine(opts Options, logger log.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Engine{opts: opts, logger: logger.With(log.ComponentKey, "smogn")}, nil
}

// Options returns the engine configuration.
func (e *Engine) Options() Options { return e.opts }

// Resample is the one-shot form of NewEngine(opts, nil).Resample(train, opts.Seed).
func Resample(train *dataset.Dataset, opts Options) (*Result, error) {
	e, err := NewEngine(opts, nil)
	if err != nil {
		return nil, err
	}
	return e.Resample(train, opts.Seed)
}

const op = "smogn.Resample"

type stratum struct {
	label   Label
	rows    []int // indices into train
	target  int
	k       int
	skipped bool
	// synthetic counts the generated rows that survived the finiteness check.
	synthetic int
}

// Resample returns train with rare strata grown by synthetic rows and the
// normal stratum under-sampled. Identical inputs and seed give identical
// output regardless of Workers.
func (e *Engine) Resample(train *dataset.Dataset, seed uint64) (*Result, error) {
	start := time.Now()
	if err := checkInput(train); err != nil {
		return nil, err
	}

	y := train.Targets()
	rel, err := FitRelevance(y)
	if err != nil {
		return nil, err
	}

	strata := make([]*stratum, len(Labels))
	for i, l := range Labels {
		strata[i] = &stratum{label: l}
	}
	for i, v := range y {
		l := rel.Label(v, e.opts.Threshold)
		strata[l].rows = append(strata[l].rows, i)
	}
	if err := e.assignK(strata); err != nil {
		return nil, err
	}
	e.assignTargets(strata, train.NumRows())

	rng := rand.New(rand.NewPCG(seed, seed))
	report := Report{
		Strategy:      e.opts.Strategy,
		Threshold:     e.opts.Threshold,
		Seed:          seed,
		Stats:         rel.Stats(),
		TargetsBefore: y,
		NonZeroBefore: countNonZero(y),
	}

	// Original rows passed checkInput; non-finite generated rows are dropped
	// per stratum before they are counted.
	var generated []*dataset.Dataset
	invalid := 0
	for _, s := range []*stratum{strata[RareLow], strata[RareHigh]} {
		need := s.target - len(s.rows)
		if need <= 0 || s.skipped {
			continue
		}
		gen, err := e.synthesize(rng, train, s, need)
		if err != nil {
			return nil, err
		}
		clean, dropped := gen.DropMissing()
		s.synthetic = clean.NumRows()
		invalid += dropped
		generated = append(generated, clean)
	}

	keep := e.undersample(rng, strata)
	out, err := dataset.Concat(train.Subset(keep), generated...)
	if err != nil {
		return nil, err
	}

	nSynthetic := 0
	for _, s := range strata {
		sr := StratumReport{Label: s.label, Before: len(s.rows), K: s.k, Skipped: s.skipped}
		if s.label == Normal {
			sr.After = min(s.target, len(s.rows))
			sr.Removed = len(s.rows) - sr.After
		} else {
			sr.Synthetic = s.synthetic
			sr.After = sr.Before + sr.Synthetic
		}
		nSynthetic += sr.Synthetic
		report.Strata = append(report.Strata, sr)
	}
	report.Synthetic = nSynthetic
	report.Invalid = invalid
	report.TargetsAfter = out.Targets()
	report.NonZeroAfter = countNonZero(report.TargetsAfter)
	report.Duration = time.Since(start)

	e.logger.Debug("resampled",
		log.RandomSeedKey, seed,
		log.StrategyKey, e.opts.Strategy.String(),
		log.SamplesKey, out.NumRows(),
		log.SyntheticKey, nSynthetic,
		log.DroppedKey, report.Stratum(Normal).Removed,
		log.NonZeroBeforeKey, report.NonZeroBefore,
		log.NonZeroAfterKey, report.NonZeroAfter,
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return &Result{Data: out, Report: report}, nil
}

func checkInput(train *dataset.Dataset) error {
	if train == nil || train.NumRows() < 2 {
		n := 0
		if train != nil {
			n = train.NumRows()
		}
		return errors.NewInsufficientDataError(op, "all", n, 2)
	}
	if err := errors.CheckFinite(op, train.Targets()); err != nil {
		return errors.Wrap(err, "targets")
	}
	for i := 0; i < train.NumRows(); i++ {
		for j, v := range train.RowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewValueError(op, fmt.Sprintf("row %d column %q is missing; apply dataset.Preprocess first", i, train.Schema().Columns[j].Name))
			}
		}
	}
	return nil
}

// assignK decides the neighbour count per rare stratum.
func (e *Engine) assignK(strata []*stratum) error {
	rare := 0
	used := 0
	largest := 0
	for _, s := range strata {
		if !s.label.IsRare() || len(s.rows) == 0 {
			continue
		}
		rare++
		largest = max(largest, len(s.rows))
		n := len(s.rows)
		switch {
		case n >= e.opts.K+1:
			s.k = e.opts.K
		case !e.opts.AdaptiveK:
			return errors.NewInsufficientDataError(op, s.label.String(), n, e.opts.K+1)
		case n < 2:
			s.skipped = true
			e.logger.Warn("stratum too small to interpolate, kept as is",
				log.StratumKey, s.label.String(), log.SamplesKey, n)
			continue
		default:
			s.k = n - 1
		}
		used++
	}
	if rare == 0 {
		return errors.NewInsufficientDataError(op, "rare", 0, 1)
	}
	if used == 0 {
		return errors.NewInsufficientDataError(op, "rare", largest, 2)
	}
	return nil
}

// assignTargets sets each stratum's post-resampling size.
//
// T = round(n/s) over the s non-empty strata. Balance grows rare strata to
// B = max(|b|, T) and shrinks the normal stratum to T. Extreme grows every
// rare stratum past its balance size, to max(B+1, round(B·(T/|b|)^γ)), and
// keeps the normal stratum at no less than the combined rare size.
func (e *Engine) assignTargets(strata []*stratum, n int) {
	nonEmpty := 0
	for _, s := range strata {
		if len(s.rows) > 0 {
			nonEmpty++
		}
	}
	T := int(math.Round(float64(n) / float64(nonEmpty)))

	rareTotal := 0
	for _, s := range strata {
		size := len(s.rows)
		if !s.label.IsRare() || size == 0 {
			continue
		}
		switch {
		case s.skipped:
			s.target = size
		case e.opts.OversampleRatio > 0:
			s.target = int(math.Round(float64(size) * e.opts.OversampleRatio))
		case e.opts.Strategy == Extreme:
			base := max(size, T)
			grown := int(math.Round(float64(base) * math.Pow(float64(T)/float64(size), e.opts.ExtremeExponent)))
			s.target = max(base+1, grown)
		default:
			s.target = max(size, T)
		}
		rareTotal += s.target
	}

	normal := strata[Normal]
	switch e.opts.Strategy {
	case Extreme:
		normal.target = min(len(normal.rows), max(T, rareTotal))
	default:
		normal.target = min(len(normal.rows), T)
	}
}

// synthesize returns need synthetic rows for s. Per-parent generators are
// seeded sequentially from rng before any goroutine starts.
func (e *Engine) synthesize(rng *rand.Rand, train *dataset.Dataset, s *stratum, need int) (*dataset.Dataset, error) {
	rows := make([][]float64, len(s.rows))
	targets := make([]float64, len(s.rows))
	for i, idx := range s.rows {
		rows[i] = train.RowView(idx)
		targets[i] = train.Target(idx)
	}
	finder, err := NewNeighborFinder(rows, train.Schema(), e.opts.distance())
	if err != nil {
		return nil, err
	}
	sets := finder.AllNeighbors(s.k, e.opts.Workers)
	sampler := NewSampler(finder, targets, train.Schema(), e.opts.Perturbation)

	parents := len(s.rows)
	counts := make([]int, parents)
	for i := range counts {
		counts[i] = need / parents
	}
	for _, i := range rng.Perm(parents)[:need%parents] {
		counts[i]++
	}
	seeds := make([][2]uint64, parents)
	for i := range seeds {
		seeds[i] = [2]uint64{rng.Uint64(), rng.Uint64()}
	}

	genRows := make([][][]float64, parents)
	genY := make([][]float64, parents)
	parallel.ForEach(parents, e.opts.Workers, func(i int) {
		prng := rand.New(rand.NewPCG(seeds[i][0], seeds[i][1]))
		genRows[i], genY[i] = sampler.SynthesizeN(prng, i, sets[i], counts[i])
	})

	out := dataset.NewBuilder(train.Schema(), need)
	for i := range genRows {
		for m, row := range genRows[i] {
			out.Add(row, genY[i][m], dataset.Synthetic)
		}
	}
	e.logger.Debug("stratum oversampled",
		log.StratumKey, s.label.String(),
		log.SamplesKey, parents,
		log.SyntheticKey, need,
		log.EffectiveKKey, s.k,
	)
	return out.Build(), nil
}

// undersample returns the sorted training indices to keep: every rare row
// and a seeded sample of normal rows without replacement.
func (e *Engine) undersample(rng *rand.Rand, strata []*stratum) []int {
	var keep []int
	for _, s := range strata {
		if s.label != Normal {
			keep = append(keep, s.rows...)
			continue
		}
		if s.target >= len(s.rows) {
			keep = append(keep, s.rows...)
			continue
		}
		for _, p := range rng.Perm(len(s.rows))[:s.target] {
			keep = append(keep, s.rows[p])
		}
	}
	slices.Sort(keep)
	return keep
}

func countNonZero(y []float64) int {
	n := 0
	for _, v := range y {
		if v != 0 {
			n++
		}
	}
	return n
}
