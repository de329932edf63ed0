package fit

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/histogram"
)

// Model predicts the raw count of a bin from its center. Histograms are filled
// with unweighted events, so amplitudes are in counts per bin.
type Model interface {
	Name() string
	ParamNames() []string
	Eval(x float64, p []float64) float64
	// Guess derives starting parameters from the histogram's own statistics.
	Guess(s histogram.Snapshot) ([]float64, error)
}

// Gradienter is implemented by models with an analytic derivative. Models
// without one are differentiated numerically.
type Gradienter interface {
	Gradient(grad []float64, x float64, p []float64)
}

const (
	GaussianModel   = "gaussian"
	RutherfordModel = "rutherford"
	FlatModel       = "flat"
)

// ModelByName returns one of the built-in models.
func ModelByName(name string) (Model, error) {
	switch name {
	case GaussianModel:
		return Gaussian{}, nil
	case RutherfordModel:
		return Rutherford{}, nil
	case FlatModel:
		return Flat{}, nil
	}
	return nil, errs.Config("model", "unknown fit model %q", name)
}

// Gaussian is A exp(-(x-mu)^2 / (2 sigma^2)).
type Gaussian struct{}

func (Gaussian) Name() string { return GaussianModel }

func (Gaussian) ParamNames() []string { return []string{"amplitude", "mean", "sigma"} }

func (Gaussian) Eval(x float64, p []float64) float64 {
	z := (x - p[1]) / p[2]
	return p[0] * math.Exp(-0.5*z*z)
}

func (Gaussian) Gradient(grad []float64, x float64, p []float64) {
	d := x - p[1]
	s2 := p[2] * p[2]
	e := math.Exp(-0.5 * d * d / s2)
	grad[0] = e
	grad[1] = p[0] * e * d / s2
	grad[2] = p[0] * e * d * d / (s2 * p[2])
}

type normalizer interface {
	normalize(p []float64)
}

// sigma enters squared, report it positive
func (Gaussian) normalize(p []float64) { p[2] = math.Abs(p[2]) }

// Guess takes mean and width from the running sums and the amplitude from the
// in-range entries spread over a normal of that width.
func (Gaussian) Guess(s histogram.Snapshot) ([]float64, error) {
	if s.InRange == 0 {
		return nil, &errs.InsufficientDataError{Entries: s.Entries, Bins: s.Len(), Params: 3, Reason: "no entries in range"}
	}
	sigma := s.StdDev
	if !(sigma > 0) {
		sigma = s.Width
	}
	amplitude := float64(s.InRange) * s.Width / (sigma * math.Sqrt(2.*math.Pi))
	return []float64{amplitude, s.Mean, sigma}, nil
}

// Rutherford is A csc^n(theta/2), the scattering law with free exponent n.
type Rutherford struct{}

func (Rutherford) Name() string { return RutherfordModel }

func (Rutherford) ParamNames() []string { return []string{"amplitude", "exponent"} }

func logCsc(theta float64) float64 {
	return -math.Log(math.Sin(theta / 2.))
}

func (Rutherford) Eval(x float64, p []float64) float64 {
	return p[0] * math.Exp(p[1]*logCsc(x))
}

func (Rutherford) Gradient(grad []float64, x float64, p []float64) {
	l := logCsc(x)
	e := math.Exp(p[1] * l)
	grad[0] = e
	grad[1] = p[0] * l * e
}

// Guess regresses log(count) on log(csc(theta/2)) over the non-empty bins,
// weighting each bin by its count.
func (Rutherford) Guess(s histogram.Snapshot) ([]float64, error) {
	var xs, ys, ws []float64
	for _, b := range s.Bins {
		if b.Count <= 0 || b.Center <= 0 || b.Center >= 2.*math.Pi {
			continue
		}
		xs = append(xs, logCsc(b.Center))
		ys = append(ys, math.Log(float64(b.Count)))
		ws = append(ws, float64(b.Count))
	}
	if len(xs) < 2 {
		return nil, &errs.InsufficientDataError{Entries: s.Entries, Bins: s.Len(), Params: 2, Reason: "fewer than two non-empty bins"}
	}
	alpha, beta := stat.LinearRegression(xs, ys, ws, false)
	return []float64{math.Exp(alpha), beta}, nil
}

// Flat is a constant count per bin.
type Flat struct{}

func (Flat) Name() string { return FlatModel }

func (Flat) ParamNames() []string { return []string{"level"} }

func (Flat) Eval(_ float64, p []float64) float64 { return p[0] }

func (Flat) Gradient(grad []float64, _ float64, _ []float64) { grad[0] = 1 }

func (Flat) Guess(s histogram.Snapshot) ([]float64, error) {
	if s.Len() == 0 || s.InRange == 0 {
		return nil, &errs.InsufficientDataError{Entries: s.Entries, Bins: s.Len(), Params: 1, Reason: "no entries in range"}
	}
	return []float64{float64(s.InRange) / float64(s.Len())}, nil
}

// Func adapts a plain function into a Model. It has no analytic gradient.
type Func struct {
	Label  string
	Params []string
	F      func(x float64, p []float64) float64
	// Start derives the initial guess; nil requires an explicit guess.
	Start func(s histogram.Snapshot) ([]float64, error)
}

func (f Func) Name() string { return f.Label }

func (f Func) ParamNames() []string { return f.Params }

func (f Func) Eval(x float64, p []float64) float64 { return f.F(x, p) }

func (f Func) Guess(s histogram.Snapshot) ([]float64, error) {
	if f.Start == nil {
		return nil, fmt.Errorf("%w: model %q needs an explicit initial guess", errs.ErrConfiguration, f.Label)
	}
	return f.Start(s)
}
