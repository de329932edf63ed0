package fit

import (
	"fmt"
	"slices"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/wildstyl3r/mcfit/internal/constants"
)

type Status string

const (
	Converged    Status = "converged"
	NotConverged Status = "not-converged"
)

// Result is created once per fit and never modified afterwards.
type Result struct {
	Model      string
	ParamNames []string
	Params     []float64
	Errors     []float64 // standard errors
	Covariance *mat.SymDense

	ChiSquare        float64
	NDF              int
	ReducedChiSquare float64
	PValue           float64

	Bins       int // bins inside the fit range
	Iterations int
	Status     Status
}

func (r *Result) Converged() bool { return r.Status == Converged }

// Param looks a parameter up by name.
func (r *Result) Param(name string) (value, stdErr float64, ok bool) {
	i := slices.Index(r.ParamNames, name)
	if i < 0 {
		return 0, 0, false
	}
	return r.Params[i], r.Errors[i], true
}

// Correlation between parameters i and j.
func (r *Result) Correlation(i, j int) float64 {
	return r.Covariance.At(i, j) / (r.Errors[i] * r.Errors[j])
}

// Interval95 is the two-sided 95% normal interval of parameter i.
func (r *Result) Interval95(i int) (lo, hi float64) {
	return r.Params[i] - constants.Quantile95*r.Errors[i], r.Params[i] + constants.Quantile95*r.Errors[i]
}

func (r *Result) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] chi2/ndf = %.4g/%d = %.4g, p = %.3g, %d iterations",
		r.Model, r.Status, r.ChiSquare, r.NDF, r.ReducedChiSquare, r.PValue, r.Iterations)
	for i, name := range r.ParamNames {
		fmt.Fprintf(&b, "\n  %-10s = %.6g +- %.3g", name, r.Params[i], r.Errors[i])
	}
	return b.String()
}
