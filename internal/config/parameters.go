package config

import (
	"maps"
	"reflect"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

const (
	ExperimentMomentum   = "momentum"
	ExperimentEfficiency = "efficiency"
	ExperimentRutherford = "rutherford"
)

var observables = map[string][]string{
	ExperimentMomentum:   {"p", "cos_theta", "pt"},
	ExperimentEfficiency: {"value"},
	ExperimentRutherford: {"theta", "b"},
}

// Observables lists the histogrammed quantities of an experiment in the
// order its generator writes them.
func Observables(experiment string) []string {
	return slices.Clone(observables[experiment])
}

var observableUnits = map[string][]UnitElement{
	"p":     {{Class: Momentum, Power: 1}},
	"pt":    {{Class: Momentum, Power: 1}},
	"theta": {{Class: Angle, Power: 1}},
	"b":     {{Class: Length, Power: 1}},
}

type FitSpec struct {
	Histogram     string    `toml:"histogram" yaml:"histogram"`
	Model         string    `toml:"model" yaml:"model"`
	Guess         []float64 `toml:"guess" yaml:"guess"`
	XMin          float64   `toml:"xmin" yaml:"xmin"`
	XMax          float64   `toml:"xmax" yaml:"xmax"`
	MaxIterations int       `toml:"max_iterations" yaml:"max_iterations"`
	ScaleErrors   bool      `toml:"scale_errors" yaml:"scale_errors"`
}

// ParameterSet is everything a single run needs, in internal units.
type ParameterSet struct {
	Experiment string               `yaml:"Experiment"`
	Events     int                  `yaml:"Events"`
	Seed       uint64               `yaml:"Seed"`
	Workers    int                  `yaml:"Workers"`
	Bins       int                  `yaml:"Bins"`
	Ranges     map[string][]float64 `yaml:"Ranges"` // observable -> [min, max]

	Mean       float64 `yaml:"Mean"`  // [MeV/c]
	Sigma      float64 `yaml:"Sigma"` // [MeV/c]
	Resolution float64 `yaml:"Resolution"`

	Low       float64 `yaml:"Low"`
	High      float64 `yaml:"High"`
	Threshold float64 `yaml:"Threshold"`

	KineticEnergy    float64 `yaml:"KineticEnergy"` // [MeV]
	ProjectileCharge int     `yaml:"ProjectileCharge"`
	AtomicNumber     int     `yaml:"AtomicNumber"`
	MassNumber       float64 `yaml:"MassNumber"`   // [g/mol]
	Density          float64 `yaml:"Density"`      // [g/cm^3]
	Thickness        float64 `yaml:"Thickness"`    // [cm]
	ArealDensity     float64 `yaml:"ArealDensity"` // [g/cm^2]
	ThetaMin         float64 `yaml:"ThetaMin"`     // [rad]
	SolidAngle       bool    `yaml:"SolidAngle"`
	// DeriveThetaMin takes the cutoff from Thomas-Fermi screening. The
	// loader sets it when ThetaMin is configured nowhere.
	DeriveThetaMin bool `toml:"-" yaml:"-"`

	BufferSamples bool      `yaml:"BufferSamples"`
	Fits          []FitSpec `yaml:"Fits"`
}

// Observables of the configured experiment.
func (p *ParameterSet) Observables() []string {
	return Observables(p.Experiment)
}

func (p *ParameterSet) clone() ParameterSet {
	c := *p
	if p.Ranges != nil {
		c.Ranges = maps.Clone(p.Ranges)
		for k, r := range c.Ranges {
			c.Ranges[k] = slices.Clone(r)
		}
	}
	c.Fits = slices.Clone(p.Fits)
	for i := range c.Fits {
		c.Fits[i].Guess = slices.Clone(c.Fits[i].Guess)
	}
	return c
}

var defaultValues = map[string]any{ // internal units
	"Events":           10000,
	"Seed":             uint64(1),
	"Workers":          1,
	"Bins":             100,
	"ProjectileCharge": 2,      // alpha
	"AtomicNumber":     79,     // gold
	"MassNumber":       196.97, // [g/mol]
	"Density":          19.32,  // [g/cm^3]
	"Thickness":        4e-5,   // [cm]
}

// Default returns a ParameterSet holding only the built-in defaults.
func Default() ParameterSet {
	var p ParameterSet
	v := reflect.ValueOf(&p).Elem()
	for name, value := range defaultValues {
		v.FieldByName(name).Set(reflect.ValueOf(value))
	}
	return p
}

var fieldsXor = map[string][]string{
	"Sigma":        {"Resolution"},
	"Resolution":   {"Sigma"},
	"Thickness":    {"ArealDensity"},
	"ArealDensity": {"Thickness"},
}

var fieldsAnd = map[string][]string{
	"Resolution":   {"Mean"},
	"ArealDensity": {"Density"},
}

var fieldsDerivable = map[string][]string{
	"Resolution":   {"Sigma"},
	"ArealDensity": {"Thickness"},
}

var valueUnits = map[string][]UnitElement{
	"Mean":          {{Class: Momentum, Power: 1}},
	"Sigma":         {{Class: Momentum, Power: 1}},
	"KineticEnergy": {{Class: Energy, Power: 1}},
	"Thickness":     {{Class: Length, Power: 1}},
	"ThetaMin":      {{Class: Angle, Power: 1}},
	// g/cm^3 and g/cm^2 are fixed
}

var calculableFields = map[string]func(*ParameterSet, []string) []string{
	"Resolution": func(p *ParameterSet, defined []string) []string {
		if slices.Contains(defined, "Mean") {
			p.Sigma = p.Resolution * p.Mean
			return []string{"Sigma"}
		}
		return nil
	},
	"ArealDensity": func(p *ParameterSet, defined []string) []string {
		if slices.Contains(defined, "Density") && p.Density > 0 {
			p.Thickness = p.ArealDensity / p.Density
			return []string{"Thickness"}
		}
		return nil
	},
}

func (p *ParameterSet) toInternal(names, units []string) {
	v := reflect.ValueOf(p).Elem()
	for _, name := range names {
		field := v.FieldByName(name)
		if classes, some := valueUnits[name]; some && field.CanFloat() {
			field.SetFloat(Convert(field.Float(), classes, units, true))
		}
	}
	if slices.Contains(names, "Ranges") {
		for observable, r := range p.Ranges {
			for i := range r {
				r[i] = Convert(r[i], observableUnits[observable], units, true)
			}
		}
	}
	if slices.Contains(names, "Fits") {
		for i := range p.Fits {
			classes := observableUnits[p.Fits[i].Histogram]
			p.Fits[i].XMin = Convert(p.Fits[i].XMin, classes, units, true)
			p.Fits[i].XMax = Convert(p.Fits[i].XMax, classes, units, true)
		}
	}
}

// checkFieldProblems reports fields defined together with an exclusive
// alternative at the same level.
func (c *Config) checkFieldProblems(path []string) (ambiguities [][]string) {
	for field, alternatives := range fieldsXor {
		if !c.isDefined(append(slices.Clone(path), field)...) {
			continue
		}
		var found []string
		for _, alternative := range alternatives {
			if c.isDefined(append(slices.Clone(path), alternative)...) {
				found = append(found, alternative)
			}
		}
		if len(found) > 0 && field < found[0] {
			ambiguities = append(ambiguities, append([]string{field}, found...))
		}
	}
	return
}

/*
field value priority:
1. model
2. model-calculable
3. global
4. global-calculable
5. default
*/

// Model resolves the named run against the global section and the built-in
// defaults, converts it to internal units and validates it.
func (c *Config) Model(modelName string) (ParameterSet, error) {
	local, some := c.Models[modelName]
	if !some {
		return ParameterSet{}, errs.Config("Models", "no model named %q", modelName)
	}
	var problems *multierror.Error
	for _, a := range c.checkFieldProblems(nil) {
		problems = multierror.Append(problems, errs.Config(a[0], "ambiguous global fields %v", a))
	}
	for _, a := range c.checkFieldProblems([]string{"Models", modelName}) {
		problems = multierror.Append(problems, errs.Config(a[0], "ambiguous fields %v in model %s", a, modelName))
	}
	if err := problems.ErrorOrNil(); err != nil {
		return ParameterSet{}, &errs.ConfigurationError{Field: "Models." + modelName, Err: err}
	}

	modelConfig := local.clone()
	modelReflect := reflect.ValueOf(&modelConfig).Elem()
	fieldsType := modelReflect.Type()

	var discovered []string
	exclude := map[string]struct{}{}
	for i := range fieldsType.NumField() {
		fieldName := fieldsType.Field(i).Name
		if c.isDefined("Models", modelName, fieldName) {
			discovered = append(discovered, fieldName)
			for _, x := range fieldsXor[fieldName] {
				exclude[x] = struct{}{}
			}
			for _, x := range fieldsDerivable[fieldName] {
				exclude[x] = struct{}{}
			}
		}
	}

	global := c.ParameterSet.clone()
	globalReflect := reflect.ValueOf(&global).Elem()
	for i := range fieldsType.NumField() {
		fieldName := fieldsType.Field(i).Name
		if _, x := exclude[fieldName]; x || slices.Contains(discovered, fieldName) || !c.isDefined(fieldName) {
			continue
		}
		modelReflect.Field(i).Set(globalReflect.Field(i))
		discovered = append(discovered, fieldName)
		exclude[fieldName] = struct{}{}
		for _, x := range fieldsXor[fieldName] {
			exclude[x] = struct{}{}
		}
		for _, x := range fieldsDerivable[fieldName] {
			exclude[x] = struct{}{}
		}
	}

	modelConfig.toInternal(discovered, c.InputUnits)

	for fieldName, value := range defaultValues {
		if _, x := exclude[fieldName]; !x && !slices.Contains(discovered, fieldName) {
			modelReflect.FieldByName(fieldName).Set(reflect.ValueOf(value))
			discovered = append(discovered, fieldName)
		}
	}

	calculatedAnything := true
	for calculatedAnything {
		calculatedAnything = false
		for initial, calculate := range calculableFields {
			if !slices.Contains(discovered, initial) {
				continue
			}
			if calculated := calculate(&modelConfig, discovered); len(calculated) != 0 {
				calculatedAnything = true
				discovered = append(discovered, calculated...)
				discovered = slices.DeleteFunc(discovered, func(elem string) bool { return elem == initial })
			}
		}
	}
	for _, field := range discovered {
		for _, requirement := range fieldsAnd[field] {
			if !slices.Contains(discovered, requirement) {
				problems = multierror.Append(problems, errs.Config(field, "requires %s", requirement))
			}
		}
	}
	if err := problems.ErrorOrNil(); err != nil {
		return ParameterSet{}, &errs.ConfigurationError{Field: "Models." + modelName, Err: err}
	}

	modelConfig.DeriveThetaMin = !slices.Contains(discovered, "ThetaMin")
	c.env.Apply(&modelConfig)
	if err := modelConfig.Validate(); err != nil {
		return ParameterSet{}, &errs.ConfigurationError{Field: "Models." + modelName, Err: err}
	}
	return modelConfig, nil
}
