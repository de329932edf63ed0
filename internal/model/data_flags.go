package model

import (
	"strconv"

	"github.com/spf13/pflag"

	"github.com/wildstyl3r/mcfit/internal/utils"
)

type DataItem struct {
	saveFlag   *bool
	fileSuffix string
}

// SequentialDataItem is one CSV output. Items with perObservable set are
// written once for every histogram of the run.
type SequentialDataItem struct {
	DataItem
	perObservable bool
	sorted        bool
	values        func(de *DataExtractor, observable string) (columns []string, rows utils.CSV, err error)
}

type DataFlags struct {
	all         *bool
	yoda        *bool
	makeDir     *bool
	sequentials map[string]SequentialDataItem
	outputPath  string
}

func format(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// NewDataFlags registers one switch per output on fs.
func NewDataFlags(fs *pflag.FlagSet) *DataFlags {
	return &DataFlags{
		all:     fs.Bool("all", false, "save every available output"),
		yoda:    fs.Bool("yoda", false, "save histograms as YODA"),
		makeDir: fs.Bool("make-dir", true, "one directory per output kind"),
		sequentials: map[string]SequentialDataItem{
			"Histograms": {
				DataItem:      DataItem{saveFlag: fs.Bool("hist", true, "save histogram bins"), fileSuffix: "hist"},
				perObservable: true,
				values: func(de *DataExtractor, observable string) ([]string, utils.CSV, error) {
					s, err := de.sim.Snapshot(observable)
					if err != nil {
						return nil, nil, err
					}
					label := de.label(observable)
					columns := []string{label + " low", label + " high", label + " center", "count"}
					rows := make(utils.CSV, 0, s.Len())
					for _, b := range s.Bins {
						rows = append(rows, []string{
							format(de.toOutput(observable, b.Low)),
							format(de.toOutput(observable, b.High)),
							format(de.toOutput(observable, b.Center)),
							strconv.FormatInt(b.Count, 10),
						})
					}
					return columns, rows, nil
				},
			},
			"Fits": {
				DataItem: DataItem{saveFlag: fs.Bool("fits", true, "save fit results"), fileSuffix: "fits"},
				sorted:   true,
				values: func(de *DataExtractor, _ string) ([]string, utils.CSV, error) {
					columns := []string{"histogram", "model", "parameter", "value", "error", "chi2", "ndf", "p-value", "status"}
					var rows utils.CSV
					for _, f := range de.fits {
						for i, name := range f.Result.ParamNames {
							value, stdErr := f.Result.Params[i], f.Result.Errors[i]
							if observableScaled[name] {
								value, stdErr = de.toOutput(f.Histogram, value), de.toOutput(f.Histogram, stdErr)
							}
							rows = append(rows, []string{
								f.Histogram, f.Result.Model, name, format(value), format(stdErr),
								format(f.Result.ChiSquare), strconv.Itoa(f.Result.NDF), format(f.Result.PValue), string(f.Result.Status),
							})
						}
					}
					return columns, rows, nil
				},
			},
			"Samples": {
				DataItem: DataItem{saveFlag: fs.Bool("samples", false, "save buffered raw samples"), fileSuffix: "samples"},
				values: func(de *DataExtractor, _ string) ([]string, utils.CSV, error) {
					values, err := de.sim.Samples()
					if err != nil {
						return nil, nil, err
					}
					primary := de.primary()
					rows := make(utils.CSV, len(values))
					for i, v := range values {
						rows[i] = []string{format(de.toOutput(primary, v))}
					}
					return []string{de.label(primary)}, rows, nil
				},
			},
			"Summary": {
				DataItem: DataItem{saveFlag: fs.Bool("summary", false, "save statistics of the buffered samples"), fileSuffix: "summary"},
				values: func(de *DataExtractor, _ string) ([]string, utils.CSV, error) {
					s, err := de.sim.Summary()
					if err != nil {
						return nil, nil, err
					}
					p := de.primary()
					columns := []string{"n", "min", "max", "mean", "median", "stddev", "p05", "p95"}
					row := []string{strconv.Itoa(s.N)}
					for _, v := range []float64{s.Min, s.Max, s.Mean, s.Median, s.StdDev, s.P05, s.P95} {
						row = append(row, format(de.toOutput(p, v)))
					}
					return columns, utils.CSV{row}, nil
				},
			},
			"Efficiency": {
				DataItem: DataItem{saveFlag: fs.Bool("eff", false, "save the detection efficiency at the configured threshold"), fileSuffix: "eff"},
				values: func(de *DataExtractor, _ string) ([]string, utils.CSV, error) {
					p, err := de.sim.Parameters()
					if err != nil {
						return nil, nil, err
					}
					e, err := de.sim.Efficiency(p.Threshold)
					if err != nil {
						return nil, nil, err
					}
					columns := []string{"threshold", "detected", "total", "ratio", "stderr"}
					return columns, utils.CSV{{
						format(e.Threshold), strconv.FormatInt(e.Detected, 10), strconv.FormatInt(e.Total, 10),
						format(e.Ratio), format(e.StdErr),
					}}, nil
				},
			},
		},
	}
}

// parameters that carry the unit of the fitted observable
var observableScaled = map[string]bool{"mean": true, "sigma": true}

func (df *DataFlags) SetOutputPath(path string) {
	df.outputPath = path
}

func (df *DataFlags) GetOutputPath() string {
	return df.outputPath
}

// Enable switches an output on by its name, e.g. "Fits".
func (df *DataFlags) Enable(name string) bool {
	item, ok := df.sequentials[name]
	if ok {
		*item.saveFlag = true
	}
	return ok
}

func (df *DataFlags) selected(item DataItem) bool {
	return *item.saveFlag || *df.all
}
