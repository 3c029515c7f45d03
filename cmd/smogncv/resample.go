package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/diagnostics"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/smogn"
)

// resampleCmd oversamples the whole file once. It is meant for inspecting
// the engine; evaluation must go through evaluate so test folds stay raw.
func resampleCmd(g *globalFlags) *cobra.Command {
	var (
		out  string
		plot string
	)
	cmd := &cobra.Command{
		Use:   "resample",
		Short: "oversample the rare targets of a file and write the result as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, ds, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			opts, err := cfg.EngineOptions()
			if err != nil {
				return err
			}
			engine, err := smogn.NewEngine(opts, logger)
			if err != nil {
				return err
			}
			res, err := engine.Resample(ds, opts.Seed)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, s := range res.Report.Strata {
				printf(cmd.ErrOrStderr(), "%-9s %5d -> %5d  synthetic %5d  removed %5d  k %d\n",
					s.Label, s.Before, s.After, s.Synthetic, s.Removed, s.K)
			}
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return errors.Wrapf(err, "create %s", out)
				}
				defer f.Close()
				w = f
			}
			if err := dataset.WriteCSV(w, res.Data); err != nil {
				return err
			}

			if plot != "" {
				p, err := diagnostics.NewPlotSink(filepath.Dir(plot), logger)
				if err != nil {
					return err
				}
				return p.Render(diagnostics.Observation{
					Before:        res.Report.TargetsBefore,
					After:         res.Report.TargetsAfter,
					NonZeroBefore: res.Report.NonZeroBefore,
					NonZeroAfter:  res.Report.NonZeroAfter,
					Synthetic:     res.Report.Synthetic,
				}, plot)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output CSV, stdout when empty")
	cmd.Flags().StringVar(&plot, "plot", "", "write the before/after target histogram to this PNG")
	return cmd
}
