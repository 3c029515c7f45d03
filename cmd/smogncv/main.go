// Command smogncv evaluates a regressor on tabular wildfire data with
// k-fold cross-validation, oversampling rare targets inside every training
// fold.
//
//	smogncv evaluate --config run.yaml
//	smogncv resample --config run.yaml --out balanced.csv
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/smogncv/config"
	"github.com/YuminosukeSato/smogncv/dataset"
	"github.com/YuminosukeSato/smogncv/pkg/errors"
	"github.com/YuminosukeSato/smogncv/pkg/log"
)

func main() {
	// .env is optional; the process environment still applies.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// flags shared by every subcommand; non-zero values override the file.
type globalFlags struct {
	configPath string
	dataPath   string
	target     string
	logLevel   string
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:          "smogncv",
		Short:        "leakage-safe cross-validation with SMOGN oversampling",
		SilenceUsage: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML run configuration")
	root.PersistentFlags().StringVar(&g.dataPath, "data", "", "input .csv or .xlsx file")
	root.PersistentFlags().StringVar(&g.target, "target", "", "target column")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(evaluateCmd(g), resampleCmd(g))
	return root
}

// load resolves the configuration, builds the logger and reads the
// preprocessed dataset.
func (g *globalFlags) load(stderr io.Writer) (*config.Config, log.Logger, *dataset.Dataset, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.Load(g.configPath)
	} else {
		cfg = config.Default()
		err = cfg.ApplyEnv(os.LookupEnv)
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if g.dataPath != "" {
		cfg.Data.Path = g.dataPath
	}
	if g.target != "" {
		cfg.Data.Target = g.target
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	if cfg.Data.Path == "" {
		return nil, nil, nil, errors.NewConfigurationError("data.path", "an input file is required", "")
	}

	logger, err := cfg.Logger(stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	log.RouteWarnings(logger)

	raw, err := dataset.ReadFile(cfg.Data.Path, cfg.ReadOptions())
	if err != nil {
		return nil, nil, nil, err
	}
	policy, err := cfg.NAPolicy()
	if err != nil {
		return nil, nil, nil, err
	}
	ds, st, err := dataset.Preprocess(raw, policy)
	if err != nil {
		return nil, nil, nil, err
	}
	logger.Info("dataset loaded",
		log.SamplesKey, ds.NumRows(),
		log.FeaturesKey, ds.NumFeatures(),
		"sentinels_replaced", st.SentinelsReplaced,
		"filled", st.Filled,
		log.DroppedKey, st.RowsDropped,
	)
	return cfg, logger, ds, nil
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
