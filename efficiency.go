package main

import (
	"github.com/spf13/cobra"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/model"
)

// newEfficiencyCmd estimates a detection efficiency without a configuration
// file: values are uniform on [low, high] and count when >= threshold.
func newEfficiencyCmd() *cobra.Command {
	p := config.Default()
	p.Experiment = config.ExperimentEfficiency
	p.Low, p.High, p.Threshold = 0, 200, 100
	// the environment replaces the defaults before the flags bind to them
	environment, envErr := config.ReadEnvironment()
	environment.Apply(&p)

	cmd := &cobra.Command{
		Use:   "efficiency",
		Short: "Estimate the fraction of uniformly drawn values above a threshold",
		Args:  cobra.NoArgs,
	}
	fs := cmd.Flags()
	fs.Float64Var(&p.Threshold, "threshold", p.Threshold, "detection threshold")
	fs.Float64Var(&p.Low, "low", p.Low, "lower edge of the uniform distribution")
	fs.Float64Var(&p.High, "high", p.High, "upper edge of the uniform distribution")
	fs.IntVarP(&p.Events, "events", "n", p.Events, "number of events")
	fs.Uint64Var(&p.Seed, "seed", p.Seed, "random seed")
	fs.IntVarP(&p.Workers, "workers", "j", p.Workers, "parallel workers")
	fs.IntVar(&p.Bins, "bins", p.Bins, "histogram bins")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if envErr != nil {
			return envErr
		}
		log, err := newLogger(cmd, environment.LogLevel)
		if err != nil {
			return err
		}
		opts := model.DefaultOptions()
		opts.Logger = log
		sim := model.New(opts)
		if _, err := sim.Rerun(cmd.Context(), p); err != nil {
			return err
		}
		e, err := sim.Efficiency(p.Threshold)
		if err != nil {
			return err
		}
		printEfficiency(cmd.OutOrStdout(), e)
		return nil
	}
	return cmd
}
