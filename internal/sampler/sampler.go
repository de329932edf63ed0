// Package sampler draws variates from the densities used by the experiments.
//
// The generator state is never global: every draw takes the *rand.Rand owned
// by the caller and advances it in place, so a run is reproduced exactly by
// replaying the same seed.
package sampler

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

type Kind string

const (
	Uniform                  Kind = "uniform"
	Gaussian                 Kind = "gaussian"
	Isotropic                Kind = "isotropic"
	RutherfordAngular        Kind = "rutherford"
	RutherfordSolidAngleKind Kind = "rutherford-solid-angle"
)

// Params carries the parameters of every kind; each kind reads only its own
// fields.
type Params struct {
	A, B        float64 // uniform bounds
	Mean, Sigma float64 // gaussian
	ThetaMin    float64 // rutherford lower cutoff [rad]
}

type Distribution interface {
	Kind() Kind
	// Sample draws one variate, advancing r.
	Sample(r *rand.Rand) float64
	// Support is the closed interval every variate falls into.
	Support() (lo, hi float64)
}

// New validates params for kind and returns the bound distribution.
func New(kind Kind, p Params) (Distribution, error) {
	switch kind {
	case Uniform:
		return NewUniform(p.A, p.B)
	case Gaussian:
		return NewGaussian(p.Mean, p.Sigma)
	case Isotropic:
		return isotropic{}, nil
	case RutherfordAngular:
		return NewRutherford(p.ThetaMin)
	case RutherfordSolidAngleKind:
		return NewRutherfordSolidAngle(p.ThetaMin)
	}
	return nil, errs.Config("kind", "unknown distribution %q", kind)
}

// Sample is the one-shot form of New(kind, p).Sample(r).
func Sample(kind Kind, p Params, r *rand.Rand) (float64, error) {
	d, err := New(kind, p)
	if err != nil {
		return 0, err
	}
	return d.Sample(r), nil
}

type uniform struct {
	dist distuv.Uniform
}

func NewUniform(a, b float64) (Distribution, error) {
	if !finite(a) || !finite(b) {
		return nil, errs.Config("uniform", "bounds must be finite, got [%v, %v)", a, b)
	}
	if a >= b {
		return nil, errs.Config("uniform", "lower bound %v must be below upper bound %v", a, b)
	}
	return uniform{dist: distuv.Uniform{Min: a, Max: b}}, nil
}

func (uniform) Kind() Kind { return Uniform }

func (u uniform) Sample(r *rand.Rand) float64 {
	d := u.dist
	d.Src = r
	return d.Rand()
}

func (u uniform) Support() (float64, float64) { return u.dist.Min, u.dist.Max }

type gaussian struct {
	dist distuv.Normal
}

func NewGaussian(mean, sigma float64) (Distribution, error) {
	if !finite(mean) || !finite(sigma) {
		return nil, errs.Config("gaussian", "parameters must be finite, got mean=%v sigma=%v", mean, sigma)
	}
	if sigma <= 0 {
		return nil, errs.Config("sigma", "must be positive, got %v", sigma)
	}
	return gaussian{dist: distuv.Normal{Mu: mean, Sigma: sigma}}, nil
}

func (gaussian) Kind() Kind { return Gaussian }

// Sample uses the ziggurat normal of math/rand/v2 through distuv.
func (g gaussian) Sample(r *rand.Rand) float64 {
	d := g.dist
	d.Src = r
	return d.Rand()
}

func (gaussian) Support() (float64, float64) { return math.Inf(-1), math.Inf(1) }

// isotropic draws cos(theta) of a direction uniform on the sphere.
type isotropic struct{}

func (isotropic) Kind() Kind { return Isotropic }

func (isotropic) Sample(r *rand.Rand) float64 { return 1. - 2.*r.Float64() }

func (isotropic) Support() (float64, float64) { return -1, 1 }

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (k Kind) String() string { return string(k) }

// ParseKind maps a configuration name onto a Kind.
func ParseKind(name string) (Kind, error) {
	switch k := Kind(name); k {
	case Uniform, Gaussian, Isotropic, RutherfordAngular, RutherfordSolidAngleKind:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown distribution %q", errs.ErrConfiguration, name)
}
