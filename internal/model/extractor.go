package model

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/fit"
	"github.com/wildstyl3r/mcfit/internal/utils"
)

type FitRecord struct {
	Histogram string
	Result    *fit.Result
}

// DataExtractor turns the last run of a Simulation into output files.
type DataExtractor struct {
	sim  *Simulation
	cfg  *config.Config // nil keeps internal units
	fits []FitRecord
	log  zerolog.Logger
}

func NewDataExtractor(sim *Simulation, cfg *config.Config, log zerolog.Logger) *DataExtractor {
	return &DataExtractor{sim: sim, cfg: cfg, log: log}
}

func (de *DataExtractor) AddFit(histogram string, res *fit.Result) {
	if res != nil {
		de.fits = append(de.fits, FitRecord{Histogram: histogram, Result: res})
	}
}

func (de *DataExtractor) Fits() []FitRecord { return de.fits }

func (de *DataExtractor) toOutput(observable string, v float64) float64 {
	if de.cfg == nil {
		return v
	}
	return de.cfg.ToOutput(observable, v)
}

func (de *DataExtractor) label(observable string) string {
	if de.cfg == nil {
		return observable
	}
	return de.cfg.Label(observable)
}

func (de *DataExtractor) primary() string {
	if names := de.sim.Observables(); len(names) > 0 {
		return names[0]
	}
	return ""
}

// runKeptNoSamples reports outputs that need a sample buffer on a run
// without one; those are skipped rather than failed.
func runKeptNoSamples(err error) bool {
	var insufficient *errs.InsufficientDataError
	return errors.As(err, &insufficient)
}

// Save writes every selected output for modelName. Failures of single
// outputs are collected and do not stop the others.
func (de *DataExtractor) Save(modelName string, df *DataFlags) error {
	var result *multierror.Error
	for name, output := range df.sequentials {
		if !df.selected(output.DataItem) {
			continue
		}
		targets := []string{""}
		if output.perObservable {
			targets = de.sim.Observables()
		}
		for _, observable := range targets {
			columns, rows, err := output.values(de, observable)
			if err != nil {
				if runKeptNoSamples(err) && !*output.saveFlag {
					continue
				}
				result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
				continue
			}
			suffix := output.fileSuffix
			if observable != "" {
				suffix += "_" + observable
			}
			if err := utils.WriteAsCSV(rows, *df.makeDir, df.outputPath, suffix, modelName, columns, output.sorted); err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
				continue
			}
			de.log.Debug().Str("output", name).Str("file", suffix).Msg("saved")
		}
	}
	if *df.yoda || *df.all {
		if err := de.saveYODA(modelName, df); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (de *DataExtractor) saveYODA(modelName string, df *DataFlags) error {
	var hists []utils.Histogram1D
	base := utils.GetFilename(modelName)
	for _, observable := range de.sim.Observables() {
		s, err := de.sim.Snapshot(observable)
		if err != nil {
			return fmt.Errorf("yoda: %w", err)
		}
		h := utils.Histogram1D{
			Name:      base + "/" + observable,
			Title:     de.label(observable),
			Min:       de.toOutput(observable, s.Min),
			Max:       de.toOutput(observable, s.Max),
			Counts:    make([]int64, s.Len()),
			Underflow: s.Underflow,
			Overflow:  s.Overflow,
		}
		for i, b := range s.Bins {
			h.Counts[i] = b.Count
		}
		hists = append(hists, h)
	}
	f, err := utils.OpenFile(*df.makeDir, df.outputPath, "yoda", base, "yoda")
	if err != nil {
		return fmt.Errorf("yoda: %w", err)
	}
	if err := utils.WriteYODA(f, hists...); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
