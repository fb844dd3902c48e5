// Command trainer trains the financial-health classifier and exports the
// stacking input, or scores a CSV with a saved model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/polishequity/analytics/config"
	"github.com/polishequity/analytics/orchestrator"
	"github.com/polishequity/analytics/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

type flags struct {
	configPath     string
	data           string
	model          string
	out            string
	seed           uint64
	logLevel       string
	trackingDB     string
	metricsFile    string
	importancePlot string
	lossPlot       string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "trainer",
		Short:         "Train the financial-health classifier",
		Long:          "Loads the labeling dataset, trains a multiclass gradient boosted model, evaluates it on a held-out split, saves it and writes the stacking input.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			res, err := orchestrator.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s\n\n", res.RunID)
			fmt.Fprintln(out, res.Report.String())
			fmt.Fprintln(out, res.Report.Summary())
			fmt.Fprintf(out, "model:    %s\nstacking: %s\n", res.ModelPath, res.StackingPath)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	root.Flags().StringVar(&f.data, "data", "", "labeling dataset CSV")
	root.Flags().StringVar(&f.model, "model", "", "output model bundle")
	root.Flags().StringVar(&f.out, "out", "", "output stacking CSV")
	root.Flags().Uint64Var(&f.seed, "seed", 42, "split and sampling seed")
	root.Flags().StringVar(&f.trackingDB, "tracking-db", "", "SQLite run registry")
	root.Flags().StringVar(&f.metricsFile, "metrics-file", "", "prometheus textfile output")
	root.Flags().StringVar(&f.importancePlot, "importance-plot", "", "feature importance chart PNG")
	root.Flags().StringVar(&f.lossPlot, "loss-plot", "", "training loss chart PNG")

	root.AddCommand(newPredictCmd(f))
	return root
}

func newPredictCmd(f *flags) *cobra.Command {
	var data, model, out string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score a CSV with a saved model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if model == "" {
				model = cfg.Paths.Model
			}
			if data == "" {
				data = cfg.Paths.Data
			}
			n, err := orchestrator.Predict(cmd.Context(), model, data, out)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scored %d rows into %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "CSV to score (defaults to the configured dataset)")
	cmd.Flags().StringVar(&model, "model", "", "model bundle (defaults to the configured model path)")
	cmd.Flags().StringVar(&out, "out", "predictions.csv", "output predictions CSV")
	return cmd
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}

	changed := func(name string) bool {
		fl := cmd.Flags().Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("data") && cmd.Name() == "trainer" {
		cfg.Paths.Data = f.data
	}
	if changed("model") && cmd.Name() == "trainer" {
		cfg.Paths.Model = f.model
	}
	if changed("out") && cmd.Name() == "trainer" {
		cfg.Paths.Stacking = f.out
	}
	if changed("seed") {
		cfg.Split.Seed = f.seed
		cfg.Training.Seed = f.seed
	}
	if changed("tracking-db") {
		cfg.Paths.TrackingDB = f.trackingDB
	}
	if changed("metrics-file") {
		cfg.Paths.MetricsFile = f.metricsFile
	}
	if changed("importance-plot") {
		cfg.Paths.ImportancePlot = f.importancePlot
	}
	if changed("loss-plot") {
		cfg.Paths.LossPlot = f.lossPlot
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := log.SetupLogger(cfg.Logging.Level, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}
