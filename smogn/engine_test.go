package smogn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

func build(t *testing.T, y []float64) *dataset.Dataset {
	t.Helper()
	x := make([][]float64, len(y))
	for i := range y {
		x[i] = []float64{float64(i), y[i] / 2}
	}
	ds, err := dataset.New(contSchema(2), x, y)
	require.NoError(t, err)
	return ds
}

// tailed has 21 low-rare, 30 normal and 21 high-rare rows: the whiskers sit
// at 49 and 51, so those values score 1 alongside the outliers.
func tailed() []float64 {
	var y []float64
	for v := 0.0; v < 6; v++ {
		y = append(y, v)
	}
	for _, g := range []struct {
		v float64
		n int
	}{{49, 15}, {50, 30}, {51, 15}} {
		for i := 0; i < g.n; i++ {
			y = append(y, g.v)
		}
	}
	for v := 100.0; v < 106; v++ {
		y = append(y, v)
	}
	return y
}

func zeroInflated(zeros int, positives ...float64) []float64 {
	y := make([]float64, zeros, zeros+len(positives))
	return append(y, positives...)
}

func TestResampleBalance(t *testing.T) {
	opts := DefaultOptions()
	opts.Seed = 42
	res, err := Resample(build(t, tailed()), opts)
	require.NoError(t, err)

	r := res.Report
	assert.Equal(t, 49.0, r.Stats.LowerWhisker)
	assert.Equal(t, 51.0, r.Stats.UpperWhisker)

	for _, l := range Labels {
		s := r.Stratum(l)
		assert.InDelta(t, 24, s.After, 1, l.String())
	}
	assert.Equal(t, 21, r.Stratum(RareLow).Before)
	assert.Equal(t, 30, r.Stratum(Normal).Before)
	assert.Equal(t, 6, r.Stratum(Normal).Removed)
	assert.Equal(t, 6, r.Synthetic)
	assert.Equal(t, 72, res.Data.NumRows())
	assert.Equal(t, 6, res.Data.NumSynthetic())
	assert.Equal(t, 5, r.Stratum(RareHigh).K)
}

func TestResampleExtreme(t *testing.T) {
	opts := DefaultOptions()
	opts.Strategy = Extreme
	opts.Seed = 42
	res, err := Resample(build(t, tailed()), opts)
	require.NoError(t, err)

	high := res.Report.Stratum(RareHigh)
	assert.Equal(t, 26, high.After)
	assert.Greater(t, high.After, 24, "extreme must exceed the balance target")
	assert.Equal(t, 30, res.Report.Stratum(Normal).After)
	assert.Equal(t, 0, res.Report.Stratum(Normal).Removed)
	assert.Equal(t, 10, res.Data.NumSynthetic())
}

func TestResampleExtremeExceedsBalance(t *testing.T) {
	spread := []float64{-100}
	for v := 1.0; v <= 18; v++ {
		spread = append(spread, v)
	}
	spread = append(spread, 100)

	tests := []struct {
		name      string
		y         []float64
		threshold float64
		k         int
	}{
		{"rare strata below the balance size", tailed(), 0.1, 5},
		{"rare strata above the balance size", spread, 0.05, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := func(s Strategy) Report {
				opts := DefaultOptions()
				opts.Strategy = s
				opts.Threshold = tt.threshold
				opts.K = tt.k
				opts.Seed = 3
				res, err := Resample(build(t, tt.y), opts)
				require.NoError(t, err)
				return res.Report
			}
			balance, extreme := run(Balance), run(Extreme)
			for _, l := range []Label{RareLow, RareHigh} {
				b, e := balance.Stratum(l), extreme.Stratum(l)
				require.Positive(t, b.Before, l.String())
				assert.Greater(t, e.After, b.After, l.String())
				assert.Greater(t, e.After, e.Before, l.String())
			}
		})
	}
}

func TestResampleDropsNonFiniteSynthetic(t *testing.T) {
	// Neighbours of opposite sign overflow to ±Inf when interpolated.
	y := zeroInflated(20, 10, 20, 30, 40, 50)
	x := make([][]float64, len(y))
	for i := range x {
		x[i] = []float64{0}
	}
	for i, v := range []float64{1e308, -1e308, 1e308, -1e308, 1e308} {
		x[20+i] = []float64{v}
	}
	train, err := dataset.New(contSchema(1), x, y)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Normalize = false
	opts.K = 3
	opts.OversampleRatio = 4
	res, err := Resample(train, opts)
	require.NoError(t, err)

	r := res.Report
	high := r.Stratum(RareHigh)
	assert.Equal(t, 7, r.Invalid)
	assert.Equal(t, 8, high.Synthetic)
	assert.Equal(t, high.Before+high.Synthetic, high.After)
	assert.Equal(t, r.Synthetic, res.Data.NumSynthetic())
	assert.False(t, res.Data.HasMissing())

	total := 0
	for _, s := range r.Strata {
		total += s.After
	}
	assert.Equal(t, res.Data.NumRows(), total)
}

func TestResampleOversampleRatio(t *testing.T) {
	opts := DefaultOptions()
	opts.OversampleRatio = 2
	res, err := Resample(build(t, tailed()), opts)
	require.NoError(t, err)
	assert.Equal(t, 42, res.Report.Stratum(RareLow).After)
	assert.Equal(t, 42, res.Report.Stratum(RareHigh).After)
}

func TestResampleDeterministic(t *testing.T) {
	y := zeroInflated(60, 3, 7, 12, 18, 25, 40, 41, 90)
	train := build(t, y)

	run := func(workers int, seed uint64) *Result {
		opts := DefaultOptions()
		opts.K = 3
		opts.Workers = workers
		e, err := NewEngine(opts, nil)
		require.NoError(t, err)
		res, err := e.Resample(train, seed)
		require.NoError(t, err)
		return res
	}

	a, b, c := run(1, 7), run(1, 7), run(4, 7)
	for _, other := range []*Result{b, c} {
		require.Equal(t, a.Data.NumRows(), other.Data.NumRows())
		assert.Equal(t, a.Data.Targets(), other.Data.Targets())
		assert.Equal(t, a.Data.Origins(), other.Data.Origins())
		for i := 0; i < a.Data.NumRows(); i++ {
			assert.Equal(t, a.Data.RowView(i), other.Data.RowView(i))
		}
	}

	assert.NotEqual(t, a.Data.Targets(), run(1, 8).Data.Targets())
}

func TestResampleOrigins(t *testing.T) {
	y := zeroInflated(20, 10, 20, 30, 40, 50)
	opts := DefaultOptions()
	opts.K = 3
	res, err := Resample(build(t, y), opts)
	require.NoError(t, err)

	// T = round(25/2) = 13
	assert.Equal(t, 26, res.Data.NumRows())
	assert.Equal(t, 8, res.Data.NumSynthetic())

	seen := map[int]bool{}
	for i := 0; i < res.Data.NumRows(); i++ {
		o := res.Data.Origin(i)
		if o == dataset.Synthetic {
			assert.Greater(t, res.Data.Target(i), 0.0)
			continue
		}
		assert.False(t, seen[o], "origin %d kept twice", o)
		seen[o] = true
		assert.Equal(t, y[o], res.Data.Target(i))
	}
	for o := 20; o < 25; o++ {
		assert.True(t, seen[o], "rare row %d must survive", o)
	}

	assert.Equal(t, 5, res.Report.NonZeroBefore)
	assert.Equal(t, 13, res.Report.NonZeroAfter)
	assert.Len(t, res.Report.TargetsBefore, 25)
	assert.Len(t, res.Report.TargetsAfter, 26)
}

func TestResampleKPolicy(t *testing.T) {
	three := build(t, zeroInflated(20, 10, 20, 30))

	t.Run("strict", func(t *testing.T) {
		opts := DefaultOptions()
		opts.K = 3
		_, err := Resample(three, opts)
		require.Error(t, err)
		var ide *errors.InsufficientDataError
		require.True(t, errors.As(err, &ide))
		assert.Equal(t, "rare_high", ide.Stratum)
		assert.Equal(t, 3, ide.Have)
		assert.Equal(t, 4, ide.Need)
	})

	t.Run("adaptive", func(t *testing.T) {
		opts := DefaultOptions()
		opts.K = 3
		opts.AdaptiveK = true
		res, err := Resample(three, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Report.Stratum(RareHigh).K)
		assert.Equal(t, 12, res.Report.Stratum(RareHigh).After)
	})

	t.Run("adaptive single row", func(t *testing.T) {
		logger, _ := log.NewTestLogger(log.LevelDebug)
		opts := DefaultOptions()
		opts.AdaptiveK = true
		e, err := NewEngine(opts, logger)
		require.NoError(t, err)
		_, err = e.Resample(build(t, zeroInflated(20, 10)), 1)
		assert.True(t, errors.IsInsufficientData(err))
		assert.True(t, logger.ContainsMessage("stratum too small"))
	})
}

func TestResampleNoRareRows(t *testing.T) {
	tests := []struct {
		name string
		y    []float64
	}{
		{"constant", zeroInflated(30)},
		{"uniform", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resample(build(t, tt.y), DefaultOptions())
			assert.True(t, errors.IsInsufficientData(err))
		})
	}
}

func TestResampleInputErrors(t *testing.T) {
	_, err := Resample(nil, DefaultOptions())
	assert.True(t, errors.IsInsufficientData(err))

	_, err = Resample(build(t, []float64{5}), DefaultOptions())
	assert.True(t, errors.IsInsufficientData(err))

	x := [][]float64{{1, 1}, {math.NaN(), 2}, {3, 3}}
	ds, err := dataset.New(contSchema(2), x, []float64{0, 0, 9})
	require.NoError(t, err)
	_, err = Resample(ds, DefaultOptions())
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestResampleLogs(t *testing.T) {
	logger, _ := log.NewTestLogger(log.LevelDebug)
	opts := DefaultOptions()
	opts.K = 3
	e, err := NewEngine(opts, logger)
	require.NoError(t, err)
	_, err = e.Resample(build(t, zeroInflated(20, 10, 20, 30, 40, 50)), 3)
	require.NoError(t, err)

	assert.True(t, logger.ContainsMessage("resampled"))
	assert.True(t, logger.ContainsField(log.SyntheticKey, 8.0))
	assert.True(t, logger.ContainsField(log.ComponentKey, "smogn"))
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		param  string
	}{
		{"defaults", func(*Options) {}, ""},
		{"threshold zero", func(o *Options) { o.Threshold = 0 }, "relevance_threshold"},
		{"threshold one", func(o *Options) { o.Threshold = 1 }, "relevance_threshold"},
		{"unknown strategy", func(o *Options) { o.Strategy = Strategy(9) }, "strategy"},
		{"k zero", func(o *Options) { o.K = 0 }, "k_neighbors"},
		{"perturbation zero", func(o *Options) { o.Perturbation = 0 }, "perturbation_fraction"},
		{"perturbation one", func(o *Options) { o.Perturbation = 1 }, "perturbation_fraction"},
		{"perturbation above one", func(o *Options) { o.Perturbation = 1.5 }, "perturbation_fraction"},
		{"ratio below one", func(o *Options) { o.OversampleRatio = 0.5 }, "oversample_ratio"},
		{"ratio infinite", func(o *Options) { o.OversampleRatio = math.Inf(1) }, "oversample_ratio"},
		{"exponent zero", func(o *Options) { o.ExtremeExponent = 0 }, "extreme_exponent"},
		{"weights zero", func(o *Options) { o.ContinuousWeight, o.CategoricalWeight = 0, 0 }, "distance_weights"},
		{"negative workers", func(o *Options) { o.Workers = -1 }, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := DefaultOptions()
			tt.modify(&o)
			err := o.Validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var ce *errors.ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.param, ce.ParamName)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Extreme")
	require.NoError(t, err)
	assert.Equal(t, Extreme, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Balance, s)

	_, err = ParseStrategy("smote")
	assert.True(t, errors.IsConfiguration(err))
}
