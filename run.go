package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/fit"
	"github.com/wildstyl3r/mcfit/internal/model"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every model of a configuration file and its fits",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringP("input", "i", "runs", "configuration file (.toml, .yaml); .toml is assumed without extension")
	cmd.Flags().StringP("output", "o", "", "output directory, overrides OutputDir")
	cmd.Flags().StringSlice("only", nil, "run only the named models")
	df := model.NewDataFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		cfg, err := config.Load(input)
		if err != nil {
			return err
		}
		log, err := newLogger(cmd, cfg.LogLevel)
		if err != nil {
			return err
		}
		outputDir := cfg.OutputDir
		if o, _ := cmd.Flags().GetString("output"); o != "" {
			outputDir = o
		}
		df.SetOutputPath(outputDir)

		names := cfg.ModelNames()
		if only, _ := cmd.Flags().GetStringSlice("only"); len(only) > 0 {
			names = only
		}

		var failures *multierror.Error
		for _, name := range names {
			if err := runModel(cmd, cfg, name, df, log); err != nil {
				log.Error().Err(err).Str("model", name).Msg("model failed")
				failures = multierror.Append(failures, fmt.Errorf("%s: %w", name, err))
			}
		}
		return failures.ErrorOrNil()
	}
	return cmd
}

// runModel runs one configured model, its fits and its outputs. A fit that
// fails is reported and does not stop the others.
func runModel(cmd *cobra.Command, cfg *config.Config, name string, df *model.DataFlags, log zerolog.Logger) error {
	p, err := cfg.Model(name)
	if err != nil {
		return err
	}
	opts := model.DefaultOptions()
	opts.Logger = log.With().Str("model", name).Logger()
	sim := model.New(opts)
	if err := sim.Configure(p); err != nil {
		return err
	}
	if _, err := sim.Run(cmd.Context()); err != nil {
		return err
	}
	info, err := sim.Info()
	if err != nil {
		return err
	}

	de := model.NewDataExtractor(sim, cfg, opts.Logger)
	out := cmd.OutOrStdout()
	printRun(out, cfg, name, sim, info)
	for _, spec := range p.Fits {
		res, err := sim.FitSpec(cmd.Context(), spec)
		switch {
		case err == nil:
		case errors.Is(err, errs.ErrNonConvergence):
			opts.Logger.Warn().Err(err).Str("histogram", spec.Histogram).Msg("fit result is inconclusive")
		default:
			opts.Logger.Error().Err(err).Str("histogram", spec.Histogram).Msg("fit failed")
			continue
		}
		de.AddFit(spec.Histogram, res)
		printFit(out, spec.Histogram, res)
	}
	if p.Experiment == config.ExperimentEfficiency {
		if e, err := sim.Efficiency(p.Threshold); err == nil {
			printEfficiency(out, e)
		}
	}
	return de.Save(name, df)
}

func printRun(w io.Writer, cfg *config.Config, name string, sim *model.Simulation, info model.RunInfo) {
	fmt.Fprintf(w, "%s: %s, %d events, %d workers, seed %d, %v\n",
		name, info.Experiment, info.Events, info.Workers, info.Seed, info.Elapsed.Round(1e6))
	if info.Experiment == config.ExperimentRutherford {
		fmt.Fprintf(w, "  theta_min = %.6g %s, scattering probability beyond it = %.4g\n",
			cfg.ToOutput("theta", info.ThetaMin), config.UnitOf(config.Angle, cfg.OutputUnits), info.ScatterProbability)
	}
	for _, observable := range sim.Observables() {
		s, err := sim.Snapshot(observable)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %-16s entries %d (under %d, over %d), mean %.6g, stddev %.6g\n",
			cfg.Label(observable), s.Entries, s.Underflow, s.Overflow,
			cfg.ToOutput(observable, s.Mean), cfg.ToOutput(observable, s.StdDev))
	}
}

func printFit(w io.Writer, histogram string, res *fit.Result) {
	fmt.Fprintf(w, "  fit %s: %s\n", histogram, res)
}

func printEfficiency(w io.Writer, e model.Efficiency) {
	fmt.Fprintf(w, "  efficiency at %g: %d / %d = %.6g +- %.2g\n", e.Threshold, e.Detected, e.Total, e.Ratio, e.StdErr)
}
