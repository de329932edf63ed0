package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

const sample = `
InputUnits = ["deg", "keV", "um"]
Events = 500
Seed = 7

[Models.run1]
Experiment = "rutherford"
KineticEnergy = 5000.0
ThetaMin = 1.0
Thickness = 0.4
Ranges = { theta = [1.0, 180.0] }

[[Models.run1.Fits]]
histogram = "theta"
model = "rutherford"
xmin = 10.0
xmax = 180.0

[Models.run2]
Experiment = "momentum"
Events = 100
Mean = 50.0
Resolution = 0.1

[Models.run10]
Experiment = "efficiency"
Low = 0.0
High = 200.0
Threshold = 100.0
`

const sampleYAML = `
InputUnits: [deg, keV, um]
Events: 500
Seed: 7
Models:
  run1:
    Experiment: rutherford
    KineticEnergy: 5000
    ThetaMin: 1
    Thickness: 0.4
    Ranges:
      theta: [1, 180]
    Fits:
      - histogram: theta
        model: rutherford
        xmin: 10
        xmax: 180
  run2:
    Experiment: momentum
    Events: 100
    Mean: 50
    Resolution: 0.1
  run10:
    Experiment: efficiency
    Low: 0
    High: 200
    Threshold: 100
`

func decode(t *testing.T, data string, format Format) *Config {
	t.Helper()
	c, err := Decode([]byte(data), format)
	require.NoError(t, err)
	return c
}

func TestResolvePriorityAndUnits(t *testing.T) {
	for _, tc := range []struct {
		format Format
		data   string
	}{{TOML, sample}, {YAML, sampleYAML}} {
		t.Run(string(tc.format), func(t *testing.T) {
			c := decode(t, tc.data, tc.format)

			run1, err := c.Model("run1")
			require.NoError(t, err)
			assert.Equal(t, 500, run1.Events, "global value")
			assert.Equal(t, uint64(7), run1.Seed)
			assert.Equal(t, 100, run1.Bins, "built-in default")
			assert.Equal(t, 79, run1.AtomicNumber)
			assert.InDelta(t, 5, run1.KineticEnergy, 1e-12)
			assert.InDelta(t, math.Pi/180, run1.ThetaMin, 1e-15)
			assert.InDelta(t, 4e-5, run1.Thickness, 1e-18)
			assert.InDeltaSlice(t, []float64{math.Pi / 180, math.Pi}, run1.Ranges["theta"], 1e-12)
			require.Len(t, run1.Fits, 1)
			assert.InDelta(t, 10*math.Pi/180, run1.Fits[0].XMin, 1e-12)

			run2, err := c.Model("run2")
			require.NoError(t, err)
			assert.Equal(t, 100, run2.Events, "model value wins")
			assert.InDelta(t, 5, run2.Sigma, 1e-12)

			run10, err := c.Model("run10")
			require.NoError(t, err)
			assert.Equal(t, 100., run10.Threshold)
		})
	}
}

func TestModelDoesNotMutateConfig(t *testing.T) {
	c := decode(t, sample, TOML)
	first, err := c.Model("run1")
	require.NoError(t, err)
	second, err := c.Model("run1")
	require.NoError(t, err)
	assert.Equal(t, first.Ranges, second.Ranges)
	assert.Equal(t, first.Fits, second.Fits)
}

func TestModelNamesNaturalOrder(t *testing.T) {
	c := decode(t, sample, TOML)
	assert.Equal(t, []string{"run1", "run2", "run10"}, c.ModelNames())
}

func TestExclusiveFields(t *testing.T) {
	c := decode(t, `
[Models.a]
Experiment = "momentum"
Mean = 10.0
Sigma = 1.0
Resolution = 0.1
`, TOML)
	_, err := c.Model("a")
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestModelFieldShadowsGlobalAlternative(t *testing.T) {
	c := decode(t, `
Resolution = 0.5
[Models.a]
Experiment = "momentum"
Mean = 10.0
Sigma = 1.0
`, TOML)
	p, err := c.Model("a")
	require.NoError(t, err)
	assert.Equal(t, 1., p.Sigma)
	assert.Zero(t, p.Resolution)
}

func TestMissingDependency(t *testing.T) {
	c := decode(t, `
[Models.a]
Experiment = "momentum"
Resolution = 0.1
`, TOML)
	_, err := c.Model("a")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires Mean")
}

func TestArealDensity(t *testing.T) {
	c := decode(t, `
[Models.foil]
Experiment = "rutherford"
KineticEnergy = 7.7
ArealDensity = 0.0019
Density = 19.0
`, TOML)
	p, err := c.Model("foil")
	require.NoError(t, err)
	assert.InDelta(t, 1e-4, p.Thickness, 1e-12)
}

func TestValidationCollectsEveryProblem(t *testing.T) {
	c := decode(t, `
[Models.bad]
Experiment = "momentum"
Events = 0
Sigma = -1.0
Bins = 0
`, TOML)
	_, err := c.Model("bad")
	require.Error(t, err)

	var cfg *errs.ConfigurationError
	require.True(t, errors.As(err, &cfg))
	var all *multierror.Error
	require.True(t, errors.As(err, &all))
	assert.Len(t, all.Errors, 3)
	assert.Contains(t, err.Error(), "Sigma")
}

func TestValidate(t *testing.T) {
	base := Default()
	base.Experiment = ExperimentEfficiency
	base.Low, base.High = 0, 200
	require.NoError(t, base.Validate())

	cases := map[string]func(p *ParameterSet){
		"unknown experiment": func(p *ParameterSet) { p.Experiment = "decay" },
		"reversed bounds":    func(p *ParameterSet) { p.Low, p.High = 5, 1 },
		"nan threshold":      func(p *ParameterSet) { p.Threshold = math.NaN() },
		"no workers":         func(p *ParameterSet) { p.Workers = 0 },
		"foreign range":      func(p *ParameterSet) { p.Ranges = map[string][]float64{"theta": {0, 1}} },
		"short range":        func(p *ParameterSet) { p.Ranges = map[string][]float64{"value": {0}} },
		"unknown fit model":  func(p *ParameterSet) { p.Fits = []FitSpec{{Histogram: "value", Model: "landau"}} },
		"guess length": func(p *ParameterSet) {
			p.Fits = []FitSpec{{Histogram: "value", Model: "flat", Guess: []float64{1, 2}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base.clone()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), errs.ErrConfiguration)
		})
	}
}

func TestValidateRutherford(t *testing.T) {
	p := Default()
	p.Experiment = ExperimentRutherford
	p.KineticEnergy = 5
	assert.ErrorIs(t, p.Validate(), errs.ErrConfiguration, "explicit zero ThetaMin")

	p.DeriveThetaMin = true
	require.NoError(t, p.Validate())
	p.ThetaMin = 0.1
	assert.ErrorIs(t, p.Validate(), errs.ErrConfiguration, "ThetaMin both given and derived")

	p.DeriveThetaMin = false
	require.NoError(t, p.Validate())
	for _, theta := range []float64{0, -0.1, math.Pi, math.NaN()} {
		p.ThetaMin = theta
		assert.ErrorIs(t, p.Validate(), errs.ErrConfiguration, "theta_min %v", theta)
	}
}

func TestThetaMinDerivedOnlyWhenAbsent(t *testing.T) {
	const foil = "[Models.gold]\nExperiment = \"rutherford\"\nKineticEnergy = 5.0\n"
	c := decode(t, foil, TOML)
	p, err := c.Model("gold")
	require.NoError(t, err)
	assert.True(t, p.DeriveThetaMin)
	assert.Zero(t, p.ThetaMin)

	c = decode(t, foil+"ThetaMin = 0.0\n", TOML)
	_, err = c.Model("gold")
	var cfgErr *errs.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "ThetaMin")

	c = decode(t, "ThetaMin = 0.2\n"+foil, TOML)
	p, err = c.Model("gold")
	require.NoError(t, err)
	assert.False(t, p.DeriveThetaMin)
	assert.Equal(t, 0.2, p.ThetaMin)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("MCFIT_EVENTS", "42")
	t.Setenv("MCFIT_WORKERS", "3")
	t.Setenv("MCFIT_OUTPUT_DIR", "/tmp/mcfit")
	c := decode(t, sample, TOML)
	p, err := c.Model("run2")
	require.NoError(t, err)
	assert.Equal(t, 42, p.Events)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, uint64(7), p.Seed)
	assert.Equal(t, "/tmp/mcfit", c.OutputDir)
}

func TestReadEnvironment(t *testing.T) {
	t.Setenv("MCFIT_SEED", "9")
	t.Setenv("MCFIT_LOG_LEVEL", "debug")
	o, err := ReadEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "debug", o.LogLevel)

	p := Default()
	events := p.Events
	o.Apply(&p)
	assert.Equal(t, uint64(9), p.Seed)
	assert.Equal(t, events, p.Events)

	t.Setenv("MCFIT_WORKERS", "-x")
	_, err = ReadEnvironment()
	assert.ErrorIs(t, err, errs.ErrConfiguration)
}

func TestUnitLists(t *testing.T) {
	_, err := Decode([]byte("InputUnits = [\"deg\", \"rad\"]\n[Models.a]\nExperiment = \"efficiency\""), TOML)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = Decode([]byte("InputUnits = [\"furlong\"]\n[Models.a]\nExperiment = \"efficiency\""), TOML)
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = Decode([]byte("Events = 3"), TOML)
	assert.ErrorIs(t, err, errs.ErrConfiguration, "no models")
}

func TestOutputConversion(t *testing.T) {
	c := decode(t, "OutputUnits = [\"deg\", \"fm\"]\n[Models.a]\nExperiment = \"efficiency\"", TOML)
	assert.InDelta(t, 180, c.ToOutput("theta", math.Pi), 1e-12)
	assert.InDelta(t, 2, c.ToOutput("b", 2e-13), 1e-12)
	assert.Equal(t, 0.5, c.ToOutput("cos_theta", 0.5))
	assert.Equal(t, "theta (deg)", c.Label("theta"))
	assert.Equal(t, "p (MeV/c)", c.Label("p"))
	assert.Equal(t, "value", c.Label("value"))
}

func TestConvertPowers(t *testing.T) {
	perArea := []UnitElement{{Class: Length, Power: -2}}
	assert.InDelta(t, 1e-4, Convert(1, perArea, []string{"m"}, true), 1e-18)
	assert.InDelta(t, 1, Convert(Convert(3, perArea, []string{"mm"}, true), perArea, []string{"mm"}, false)/3, 1e-12)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "runs.toml"), []byte(sample), 0o600))
	c, err := Load(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	assert.Len(t, c.Models, 3)

	_, err = Load(filepath.Join(dir, "runs.ini"))
	assert.ErrorIs(t, err, errs.ErrConfiguration)
	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
