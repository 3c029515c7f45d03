package main

import (
	"io"
	"math"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/smogncv/config"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/diagnostics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
	"github.com/YuminosukeSato/smogncv/sklearn/model_selection"
	"github.com/YuminosukeSato/smogncv/smogn"
)

func evaluateCmd(g *globalFlags) *cobra.Command {
	var (
		folds    int
		workers  int
		raw      bool
		plotDir  string
		fallback bool
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "run k-fold cross-validation and print the per-fold scores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, ds, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("folds") {
				cfg.CrossValidation.Folds = folds
			}
			if flags.Changed("workers") {
				cfg.CrossValidation.Workers = workers
			}
			if raw {
				cfg.Resampling.UseResampling = false
			}
			if plotDir != "" {
				cfg.Diagnostics.PlotDir = plotDir
			}
			if fallback {
				cfg.CrossValidation.FailurePolicy = model_selection.FallbackToRaw.String()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return evaluate(cmd, cfg, logger, ds)
		},
	}
	cmd.Flags().IntVarP(&folds, "folds", "k", 0, "number of folds")
	cmd.Flags().IntVar(&workers, "workers", 0, "folds evaluated concurrently, 0 for one per CPU")
	cmd.Flags().BoolVar(&raw, "raw", false, "skip resampling")
	cmd.Flags().StringVar(&plotDir, "plot-dir", "", "write a before/after target histogram per fold")
	cmd.Flags().BoolVar(&fallback, "fallback", false, "fit on the raw fold when resampling fails")
	return cmd
}

func evaluate(cmd *cobra.Command, cfg *config.Config, logger log.Logger, ds *dataset.Dataset) error {
	engineOpts, err := cfg.EngineOptions()
	if err != nil {
		return err
	}
	engine, err := smogn.NewEngine(engineOpts, logger)
	if err != nil {
		return err
	}
	factory, err := cfg.ModelFactory()
	if err != nil {
		return err
	}
	opts, err := cfg.CrossValidatorOptions(engine, logger)
	if err != nil {
		return err
	}

	sink, err := buildSink(cfg, logger)
	if err != nil {
		return err
	}
	if sink != nil {
		defer sink.Close()
		opts = append(opts, model_selection.WithSink(sink))
	}

	cv, err := model_selection.NewCrossValidator(opts...)
	if err != nil {
		return err
	}
	res, err := cv.Evaluate(cmd.Context(), ds, factory)
	if res == nil {
		return err
	}
	report(cmd.OutOrStdout(), res)
	return err
}

// buildSink returns nil when no diagnostics are configured.
func buildSink(cfg *config.Config, logger log.Logger) (*diagnostics.AsyncSink, error) {
	var sinks []diagnostics.Sink
	if cfg.Diagnostics.LogNonZero {
		sinks = append(sinks, diagnostics.NewLogSink(logger))
	}
	if cfg.Diagnostics.PlotDir != "" {
		p, err := diagnostics.NewPlotSink(cfg.Diagnostics.PlotDir, logger)
		if err != nil {
			return nil, errors.Wrap(err, "plot sink")
		}
		sinks = append(sinks, p)
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return diagnostics.NewAsyncSink(diagnostics.Tee(sinks...), cfg.Diagnostics.Buffer, logger), nil
}

func report(w io.Writer, res *model_selection.CVResult) {
	printf(w, "run %s\n", res.RunID)
	for _, f := range res.Folds {
		switch f.State {
		case model_selection.Scored:
			note := ""
			if f.UsedFallback {
				note = "  (raw fallback)"
			}
			printf(w, "fold %2d  score %8.4f  train %5d  fit %5d  synthetic %5d%s\n",
				f.Index, f.Score, f.TrainSize, f.FitSize, f.Synthetic, note)
		default:
			printf(w, "fold %2d  %s\n", f.Index, f.State)
		}
	}
	mean, std := res.Mean(), res.Std()
	if math.IsNaN(mean) {
		printf(w, "no fold was scored\n")
	} else {
		printf(w, "mean %.4f ± %.4f over %d folds\n", mean, std, len(res.Scores()))
	}
	if !res.Complete {
		printf(w, "INCOMPLETE: %d of %d folds scored\n", len(res.Scores()), len(res.Folds))
	}
}
