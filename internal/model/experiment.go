package model

import (
	"math"
	"math/rand/v2"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/sampler"
)

// Generator produces one event per call. All observables of an event derive
// from the same draws, so they are correlated.
type Generator interface {
	Observables() []string
	// Generate writes one value per observable into dst, advancing r.
	Generate(r *rand.Rand, dst []float64)
	// Range is the default histogram range of observable i.
	Range(i int) (lo, hi float64)
}

// width of the default momentum window, in sigma
const momentumWindow = 5.

// NewGenerator builds the generator of p.Experiment. p must be valid.
func NewGenerator(p config.ParameterSet) (Generator, error) {
	switch p.Experiment {
	case config.ExperimentMomentum:
		momentum, err := sampler.NewGaussian(p.Mean, p.Sigma)
		if err != nil {
			return nil, err
		}
		direction, _ := sampler.New(sampler.Isotropic, sampler.Params{})
		return &decay{momentum: momentum, direction: direction, mean: p.Mean, sigma: p.Sigma}, nil
	case config.ExperimentEfficiency:
		value, err := sampler.NewUniform(p.Low, p.High)
		if err != nil {
			return nil, err
		}
		return &detection{value: value}, nil
	case config.ExperimentRutherford:
		target := NewTarget(p)
		thetaMin := p.ThetaMin
		if p.DeriveThetaMin {
			thetaMin = target.ScreeningAngle()
		}
		kind := sampler.RutherfordAngular
		if p.SolidAngle {
			kind = sampler.RutherfordSolidAngleKind
		}
		angle, err := sampler.New(kind, sampler.Params{ThetaMin: thetaMin})
		if err != nil {
			return nil, err
		}
		return &scattering{angle: angle, target: target, thetaMin: thetaMin}, nil
	}
	return nil, errs.Config("Experiment", "unknown experiment %q", p.Experiment)
}

// decay is a two-body decay product: |p| is Gaussian and the direction is
// isotropic. The transverse momentum follows from both.
type decay struct {
	momentum, direction sampler.Distribution
	mean, sigma         float64
}

func (*decay) Observables() []string { return config.Observables(config.ExperimentMomentum) }

func (g *decay) Generate(r *rand.Rand, dst []float64) {
	p := g.momentum.Sample(r)
	cos := g.direction.Sample(r)
	sin := math.Sqrt(math.Max(0, 1.-cos*cos))
	dst[0] = p
	dst[1] = cos
	dst[2] = math.Abs(p) * sin
}

func (g *decay) Range(i int) (float64, float64) {
	switch i {
	case 0:
		return g.mean - momentumWindow*g.sigma, g.mean + momentumWindow*g.sigma
	case 1:
		return -1, 1
	}
	return 0, math.Abs(g.mean) + momentumWindow*g.sigma
}

type detection struct {
	value sampler.Distribution
}

func (*detection) Observables() []string { return config.Observables(config.ExperimentEfficiency) }

func (g *detection) Generate(r *rand.Rand, dst []float64) { dst[0] = g.value.Sample(r) }

func (g *detection) Range(int) (float64, float64) { return g.value.Support() }

// scattering deflects a projectile off a foil nucleus. The impact parameter
// is the one that produces the drawn angle.
type scattering struct {
	angle    sampler.Distribution
	target   Target
	thetaMin float64
}

func (*scattering) Observables() []string { return config.Observables(config.ExperimentRutherford) }

func (g *scattering) Generate(r *rand.Rand, dst []float64) {
	theta := g.angle.Sample(r)
	dst[0] = theta
	dst[1] = g.target.ImpactParameter(theta)
}

func (g *scattering) Range(i int) (float64, float64) {
	if i == 0 {
		return g.thetaMin, math.Pi
	}
	return 0, g.target.ImpactParameter(g.thetaMin)
}
