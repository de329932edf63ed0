package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "mcfit",
		Short: "Monte Carlo event generation and histogram fitting",
		Long: `mcfit draws events for decay-momentum, detection-efficiency and
Rutherford-scattering experiments, histograms every observable and fits
parametric models to the histograms.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error); MCFIT_LOG_LEVEL if unset")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newEfficiencyCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// newLogger writes human readable lines to stderr. An explicit flag wins
// over fallback, which comes from config.Environment or the config file.
func newLogger(cmd *cobra.Command, fallback string) (zerolog.Logger, error) {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = fallback
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "mcfit version %s\n", version)
		},
	}
}
