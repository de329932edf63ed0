package sampler

import (
	"math"
	"math/rand/v2"

	"github.com/wildstyl3r/mcfit/internal/errs"
)

// Rutherford samples theta with density proportional to csc^4(theta/2) on
// [thetaMin, pi].
//
// With c = cot(theta/2) the antiderivative is G(c) = c + c^3/3 (up to sign
// and a factor 2), G(cot(pi/2)) = 0, so
//
//	F(theta) = 1 - G(c) / G(cMin)
//
// Inversion for a uniform draw u solves c^3 + 3c - 3g = 0 with
// g = (1-u) G(cMin). The cubic has one real root; by Cardano, writing
// A = cbrt(3g/2 + sqrt(9g^2/4 + 1)), the root is c = A - 1/A (the second
// Cardano term equals -1/A because the product of both terms is -p/3 = -1).
// Finally theta = 2 atan2(1, c).
type Rutherford struct {
	thetaMin float64
	gMin     float64
}

func NewRutherford(thetaMin float64) (*Rutherford, error) {
	if err := checkThetaMin(thetaMin); err != nil {
		return nil, err
	}
	cMin := 1. / math.Tan(thetaMin/2.)
	gMin := cMin + cMin*cMin*cMin/3.
	if math.IsInf(gMin, 0) {
		return nil, errs.Config("theta_min", "%g is too small, the normalization overflows", thetaMin)
	}
	return &Rutherford{
		thetaMin: thetaMin,
		gMin:     gMin,
	}, nil
}

func (*Rutherford) Kind() Kind { return RutherfordAngular }

func (d *Rutherford) Support() (float64, float64) { return d.thetaMin, math.Pi }

func (d *Rutherford) ThetaMin() float64 { return d.thetaMin }

func (d *Rutherford) Sample(r *rand.Rand) float64 {
	return d.Quantile(r.Float64())
}

// Quantile is the inverse CDF. u = 0 maps to thetaMin and u -> 1 to pi.
func (d *Rutherford) Quantile(u float64) float64 {
	g := (1. - u) * d.gMin
	if g <= 0 {
		return math.Pi
	}
	// A = cbrt(g (3/2 + sqrt(9/4 + 1/g^2))), factored so that h^2 never
	// overflows for cutoffs near the representable limit
	a := math.Cbrt(g) * math.Cbrt(1.5+math.Hypot(1.5, 1./g))
	c := a - 1./a
	theta := 2. * math.Atan2(1., c)
	// the cubic inversion can land one ulp below the cutoff at u = 0
	return math.Min(math.Max(theta, d.thetaMin), math.Pi)
}

func (d *Rutherford) CDF(theta float64) float64 {
	switch {
	case theta <= d.thetaMin:
		return 0
	case theta >= math.Pi:
		return 1
	}
	c := 1. / math.Tan(theta/2.)
	return 1. - (c+c*c*c/3.)/d.gMin
}

// PDF is the normalized density csc^4(theta/2) / (2 G(cMin)).
func (d *Rutherford) PDF(theta float64) float64 {
	if theta < d.thetaMin || theta > math.Pi {
		return 0
	}
	s := math.Sin(theta / 2.)
	return 1. / (2. * d.gMin * s * s * s * s)
}

// RutherfordSolidAngle samples the laboratory polar angle when the
// differential cross section dsigma/dOmega ~ csc^4(theta/2) is integrated over
// azimuth: the density in theta is proportional to sin(theta) csc^4(theta/2).
//
// With s = sin(theta/2) the density becomes 4 ds / s^3, so
//
//	F(theta) = (1/sMin^2 - 1/s^2) / (1/sMin^2 - 1)
//
// and the inverse for a uniform draw u is
//
//	theta = 2 asin(1 / sqrt(1/sMin^2 - u (1/sMin^2 - 1))).
type RutherfordSolidAngle struct {
	thetaMin    float64
	invSMinSq   float64
	normalizing float64
}

func NewRutherfordSolidAngle(thetaMin float64) (*RutherfordSolidAngle, error) {
	if err := checkThetaMin(thetaMin); err != nil {
		return nil, err
	}
	s := math.Sin(thetaMin / 2.)
	inv := 1. / (s * s)
	if math.IsInf(inv, 0) {
		return nil, errs.Config("theta_min", "%g is too small, the normalization overflows", thetaMin)
	}
	return &RutherfordSolidAngle{
		thetaMin:    thetaMin,
		invSMinSq:   inv,
		normalizing: inv - 1.,
	}, nil
}

func (*RutherfordSolidAngle) Kind() Kind { return RutherfordSolidAngleKind }

func (d *RutherfordSolidAngle) Support() (float64, float64) { return d.thetaMin, math.Pi }

func (d *RutherfordSolidAngle) Sample(r *rand.Rand) float64 {
	return d.Quantile(r.Float64())
}

func (d *RutherfordSolidAngle) Quantile(u float64) float64 {
	inv := d.invSMinSq - u*d.normalizing
	theta := 2. * math.Asin(math.Min(1./math.Sqrt(inv), 1.))
	return math.Min(math.Max(theta, d.thetaMin), math.Pi)
}

func (d *RutherfordSolidAngle) CDF(theta float64) float64 {
	switch {
	case theta <= d.thetaMin:
		return 0
	case theta >= math.Pi:
		return 1
	}
	s := math.Sin(theta / 2.)
	return (d.invSMinSq - 1./(s*s)) / d.normalizing
}

func checkThetaMin(thetaMin float64) error {
	if math.IsNaN(thetaMin) || thetaMin <= 0 {
		return errs.Config("theta_min", "must be positive, the density diverges at 0 (got %v)", thetaMin)
	}
	if thetaMin >= math.Pi {
		return errs.Config("theta_min", "must be below pi, got %v", thetaMin)
	}
	return nil
}
