package config

import (
	"math"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/fit"
)

func finite(v ...float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// Validate reports every out-of-domain parameter at once. Nothing is
// clamped. ThetaMin must be given in (0, pi) unless DeriveThetaMin is set,
// in which case it must be left unset.
func (p *ParameterSet) Validate() error {
	var result *multierror.Error
	bad := func(field, format string, args ...any) {
		result = multierror.Append(result, errs.Config(field, format, args...))
	}

	known := observables[p.Experiment]
	if known == nil {
		bad("Experiment", "unknown experiment %q", p.Experiment)
	}
	if p.Events < 1 {
		bad("Events", "must be at least 1, got %d", p.Events)
	}
	if p.Workers < 1 {
		bad("Workers", "must be at least 1, got %d", p.Workers)
	}
	if p.Bins < 1 {
		bad("Bins", "must be at least 1, got %d", p.Bins)
	}
	for name, r := range p.Ranges {
		if known != nil && !slices.Contains(known, name) {
			bad("Ranges", "%s has no observable %q", p.Experiment, name)
			continue
		}
		if len(r) != 2 || !finite(r...) || !(r[0] < r[1]) {
			bad("Ranges", "%s needs finite [min, max] with min < max, got %v", name, r)
		}
	}

	switch p.Experiment {
	case ExperimentMomentum:
		if !finite(p.Mean) {
			bad("Mean", "must be finite")
		}
		if !(p.Sigma > 0) || !finite(p.Sigma) {
			bad("Sigma", "must be positive, got %g", p.Sigma)
		}
	case ExperimentEfficiency:
		if !finite(p.Low, p.High) || !(p.Low < p.High) {
			bad("Low", "need Low < High, got [%g, %g]", p.Low, p.High)
		}
		if !finite(p.Threshold) {
			bad("Threshold", "must be finite")
		}
	case ExperimentRutherford:
		if !(p.KineticEnergy > 0) || !finite(p.KineticEnergy) {
			bad("KineticEnergy", "must be positive, got %g", p.KineticEnergy)
		}
		if p.ProjectileCharge < 1 {
			bad("ProjectileCharge", "must be at least 1, got %d", p.ProjectileCharge)
		}
		if p.AtomicNumber < 1 {
			bad("AtomicNumber", "must be at least 1, got %d", p.AtomicNumber)
		}
		switch {
		case p.DeriveThetaMin && p.ThetaMin != 0:
			bad("ThetaMin", "given as %g while derived from screening", p.ThetaMin)
		case !p.DeriveThetaMin && !(p.ThetaMin > 0 && p.ThetaMin < math.Pi):
			bad("ThetaMin", "must lie in (0, pi), got %g", p.ThetaMin)
		}
		if !(p.Thickness >= 0) || !finite(p.Thickness) {
			bad("Thickness", "must not be negative, got %g", p.Thickness)
		}
		if p.Thickness > 0 && (!(p.Density > 0) || !(p.MassNumber > 0)) {
			bad("Density", "a foil needs positive Density and MassNumber")
		}
	}

	for i, f := range p.Fits {
		if known != nil && !slices.Contains(known, f.Histogram) {
			bad("Fits", "fit %d: %s has no histogram %q", i, p.Experiment, f.Histogram)
		}
		m, err := fit.ModelByName(f.Model)
		if err != nil {
			bad("Fits", "fit %d: unknown model %q", i, f.Model)
		} else if len(f.Guess) != 0 && len(f.Guess) != len(m.ParamNames()) {
			bad("Fits", "fit %d: model %s takes %d parameters, guess has %d", i, f.Model, len(m.ParamNames()), len(f.Guess))
		}
		if !finite(f.XMin, f.XMax) || f.XMin > f.XMax {
			bad("Fits", "fit %d: xmin %g above xmax %g", i, f.XMin, f.XMax)
		}
		if !finite(f.Guess...) {
			bad("Fits", "fit %d: non-finite guess", i)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return &errs.ConfigurationError{Reason: "invalid parameter set", Err: err}
	}
	return nil
}
