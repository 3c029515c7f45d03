package model_selection

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/smogncv/core/model"
	"github.com/YuminosukeSato/smogncv/core/parallel"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/diagnostics"
	"github.com/YuminosukeSato/smogncv/metrics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
	"github.com/YuminosukeSato/smogncv/smogn"
)

// Resampler rebalances a training partition. *smogn.Engine implements it.
type Resampler interface {
	Resample(train *dataset.Dataset, seed uint64) (*smogn.Result, error)
}

var _ Resampler = (*smogn.Engine)(nil)

// CrossValidator evaluates a model factory with k-fold cross-validation.
// Each fold's training partition is resampled on its own, so nothing in a
// test partition reaches the resampler or the model before scoring.
type CrossValidator struct {
	folds   int
	shuffle bool
	seed    uint64
	workers int
	policy  FailurePolicy

	resampler  Resampler
	sink       diagnostics.Sink
	logger     log.Logger
	metric     metrics.Func
	metricName string
}

// NewCrossValidator applies opts over the defaults: 5 folds, no shuffle,
// seed 0, no resampling, Abort, one worker.
func NewCrossValidator(opts ...Option) (*CrossValidator, error) {
	cv := &CrossValidator{
		folds:   5,
		workers: 1,
		policy:  Abort,
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(cv)
	}
	if cv.folds < 2 {
		return nil, errors.NewConfigurationError("folds", "must be at least 2", cv.folds)
	}
	if cv.workers < 0 {
		return nil, errors.NewConfigurationError("workers", "must be >= 0", cv.workers)
	}
	if cv.policy != Abort && cv.policy != FallbackToRaw {
		return nil, errors.NewConfigurationError("failure_policy", "must be abort or fallback", int(cv.policy))
	}
	cv.logger = cv.logger.With(log.ComponentKey, "model_selection")
	return cv, nil
}

// Split returns the folds Evaluate would use for n rows.
func (cv *CrossValidator) Split(n int) ([]Fold, error) {
	return NewKFold(cv.folds, cv.shuffle, cv.seed).Split(n)
}

// CrossValScore is the one-shot form of NewCrossValidator(opts...).Evaluate
// returning only the scores.
func CrossValScore(ctx context.Context, ds *dataset.Dataset, factory model.Factory, opts ...Option) ([]float64, error) {
	cv, err := NewCrossValidator(opts...)
	if err != nil {
		return nil, err
	}
	res, err := cv.Evaluate(ctx, ds, factory)
	if res == nil {
		return nil, err
	}
	return res.Scores(), err
}

// Evaluate runs every fold: split, optional resample, fit a fresh model,
// score on the untouched test partition.
//
// The first fold error cancels the folds that have not finished; folds
// already scored are kept. When the run stops early the partial result is
// returned together with the error and Complete is false. Invalid
// configuration or input returns a nil result.
func (cv *CrossValidator) Evaluate(ctx context.Context, ds *dataset.Dataset, factory model.Factory) (*CVResult, error) {
	start := time.Now()
	if ds == nil || ds.NumRows() == 0 {
		return nil, errors.WithStack(errors.ErrEmptyData)
	}
	if factory == nil {
		return nil, errors.NewConfigurationError("model", "a model factory is required", nil)
	}
	if ds.HasMissing() {
		return nil, errors.NewValueError("model_selection.Evaluate", "dataset has missing values; apply dataset.Preprocess first")
	}
	folds, err := cv.Split(ds.NumRows())
	if err != nil {
		return nil, err
	}

	res := &CVResult{RunID: uuid.New(), Folds: make([]FoldResult, len(folds))}
	for i, f := range folds {
		res.Folds[i] = FoldResult{
			Index:     i,
			State:     Pending,
			TrainSize: len(f.TrainIndices),
			TestSize:  len(f.TestIndices),
		}
	}
	runID := res.RunID.String()
	logger := cv.logger.With(log.RunIDKey, runID)
	workers := parallel.Workers(cv.workers)
	logger.Info("cross-validation started",
		log.SamplesKey, ds.NumRows(),
		log.FeaturesKey, ds.NumFeatures(),
		"cv.folds", len(folds),
		"cv.resampling", cv.resampler != nil,
		log.WorkersKey, workers,
		log.RandomSeedKey, cv.seed,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, fold := range folds {
		g.Go(func() error {
			return cv.runFold(gctx, runID, ds, fold, factory, &res.Folds[fold.Index], logger)
		})
	}
	err = g.Wait()

	res.Complete = true
	for _, f := range res.Folds {
		if f.State != Scored {
			res.Complete = false
			break
		}
	}
	if err == nil && !res.Complete {
		err = ctx.Err()
	}
	res.err = err
	res.Duration = time.Since(start)

	if res.Complete {
		logger.Info("cross-validation finished",
			log.MeanScoreKey, res.Mean(),
			log.StdScoreKey, res.Std(),
			log.DurationMsKey, res.Duration.Milliseconds(),
		)
	} else {
		counts := res.Counts()
		logger.Warn("cross-validation incomplete",
			"cv.scored", counts[Scored],
			"cv.failed", counts[Failed],
			"cv.cancelled", counts[Cancelled],
		)
	}
	return res, err
}

func (cv *CrossValidator) runFold(ctx context.Context, runID string, ds *dataset.Dataset, fold Fold, factory model.Factory, fr *FoldResult, logger log.Logger) error {
	start := time.Now()
	defer func() { fr.Duration = time.Since(start) }()
	flog := logger.With(log.FoldKey, fold.Index)

	if ctx.Err() != nil {
		fr.State = Cancelled
		return nil
	}
	train := ds.Subset(fold.TrainIndices)
	test := ds.Subset(fold.TestIndices)
	fr.State = Split

	fit := train
	if cv.resampler != nil {
		out, err := cv.resampler.Resample(train, cv.seed+uint64(fold.Index))
		switch {
		case err == nil:
			fit = out.Data
			report := out.Report
			fr.Report = &report
			fr.Synthetic = out.Data.NumSynthetic()
			fr.State = Resampled
			cv.observe(runID, fold.Index, out)
		case cv.policy == FallbackToRaw:
			fr.UsedFallback = true
			fr.ResampleErr = err
			flog.Warn("resampling failed, fitting on the raw training partition", err, log.FallbackKey, true)
		default:
			fr.State = Failed
			fr.Err = errors.Wrapf(err, "fold %d: resample", fold.Index)
			flog.Error("resampling failed", err, log.FoldStateKey, fr.State.String())
			return fr.Err
		}
	}
	fr.FitSize = fit.NumRows()

	if ctx.Err() != nil {
		fr.State = Cancelled
		return nil
	}
	score, err := cv.fitAndScore(fold.Index, factory, fit, test, fr)
	if err != nil {
		fr.State = Failed
		fr.Err = err
		flog.Error("model failed", err, log.FoldStateKey, fr.State.String())
		return err
	}
	fr.Score = score
	fr.State = Scored
	flog.Info("fold scored",
		log.ScoreKey, score,
		log.TrainSizeKey, fr.TrainSize,
		log.TestSizeKey, fr.TestSize,
		log.SamplesKey, fr.FitSize,
		log.SyntheticKey, fr.Synthetic,
		log.FallbackKey, fr.UsedFallback,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (cv *CrossValidator) observe(runID string, fold int, out *smogn.Result) {
	if cv.sink == nil {
		return
	}
	cv.sink.Observe(diagnostics.Observation{
		RunID:         runID,
		Fold:          fold,
		Before:        out.Report.TargetsBefore,
		After:         out.Report.TargetsAfter,
		NonZeroBefore: out.Report.NonZeroBefore,
		NonZeroAfter:  out.Report.NonZeroAfter,
		Synthetic:     out.Report.Synthetic,
	})
}

// fitAndScore builds a fresh model, fits it on train and scores it on
// test. Errors and panics from the model come back as ModelFitError.
func (cv *CrossValidator) fitAndScore(fold int, factory model.Factory, train, test *dataset.Dataset, fr *FoldResult) (float64, error) {
	var m model.Model
	err := errors.SafeExecute("model.Factory", func() error {
		var err error
		m, err = factory()
		if err == nil && m == nil {
			err = errors.New("model factory returned nil")
		}
		return err
	})
	if err != nil {
		return 0, errors.NewModelFitError(fold, log.OperationFit, err)
	}

	err = errors.SafeExecute("model.Fit", func() error {
		return m.Fit(train.Features(), train.TargetVector())
	})
	if err != nil {
		return 0, errors.NewModelFitError(fold, log.OperationFit, err)
	}
	fr.State = Fitted

	var score float64
	err = errors.SafeExecute("model.Score", func() error {
		var err error
		score, err = cv.score(m, test)
		return err
	})
	if err != nil {
		return 0, errors.NewModelFitError(fold, log.OperationScore, err)
	}
	return score, nil
}

func (cv *CrossValidator) score(m model.Model, test *dataset.Dataset) (float64, error) {
	if cv.metric == nil {
		return m.Score(test.Features(), test.TargetVector())
	}
	p, ok := m.(model.Predictor)
	if !ok {
		return 0, errors.NewConfigurationError("metric", "model does not implement Predict", cv.metricName)
	}
	pred, err := p.Predict(test.Features())
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVector(pred)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVector(test.TargetVector())
	if err != nil {
		return 0, err
	}
	return cv.metric(yTrue, yPred)
}
