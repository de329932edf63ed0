// Package fit adjusts a parametric model to a histogram snapshot by
// Levenberg-Marquardt least squares.
//
// Residuals are (count - f(center)) / sigma with the Poisson error
// sigma = max(sqrt(count), 1), so empty bins keep unit weight.
package fit

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/histogram"
	"github.com/wildstyl3r/mcfit/internal/utils"
)

type Options struct {
	MaxIterations int     // cap on Jacobian evaluations
	Tolerance     float64 // relative parameter change that counts as converged
	InitialLambda float64
	// XMin and XMax restrict the fit to bins whose centers lie in
	// [XMin, XMax]. Equal values select every bin.
	XMin, XMax float64
	MinEntries int64 // in-range entries required
	// ScaleErrors multiplies the covariance by the reduced chi-square.
	ScaleErrors bool
	Logger      zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		MaxIterations: 200,
		Tolerance:     1e-8,
		InitialLambda: 1e-3,
		MinEntries:    1,
		Logger:        zerolog.Nop(),
	}
}

type Engine struct {
	opts Options
}

// NewEngine fills unset options from DefaultOptions.
func NewEngine(opts Options) *Engine {
	def := DefaultOptions()
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = def.MaxIterations
	}
	if opts.Tolerance <= 0 {
		opts.Tolerance = def.Tolerance
	}
	if opts.InitialLambda <= 0 {
		opts.InitialLambda = def.InitialLambda
	}
	if opts.MinEntries <= 0 {
		opts.MinEntries = def.MinEntries
	}
	return &Engine{opts: opts}
}

const (
	lambdaUp   = 10.
	lambdaDown = 10.
	lambdaMax  = 1e16
	condMax    = 1e15
)

// problem is the selected bins in the weighted form used by the solver.
type problem struct {
	model Model
	grad  Gradienter
	x     []float64
	y     []float64
	sigma []float64
}

func (pr *problem) residuals(dst, p []float64) float64 {
	var chi2 float64
	for i := range pr.x {
		dst[i] = (pr.y[i] - pr.model.Eval(pr.x[i], p)) / pr.sigma[i]
		chi2 += dst[i] * dst[i]
	}
	return chi2
}

// jacobian fills J[i][j] = d f(x_i) / d p_j / sigma_i.
func (pr *problem) jacobian(dst *mat.Dense, p []float64) {
	if pr.grad != nil {
		row := make([]float64, len(p))
		for i := range pr.x {
			pr.grad.Gradient(row, pr.x[i], p)
			for j := range row {
				row[j] /= pr.sigma[i]
			}
			dst.SetRow(i, row)
		}
		return
	}
	fd.Jacobian(dst, func(y, q []float64) {
		for i := range pr.x {
			y[i] = pr.model.Eval(pr.x[i], q) / pr.sigma[i]
		}
	}, p, &fd.JacobianSettings{Formula: fd.Central})
}

func (e *Engine) selectBins(s histogram.Snapshot, m Model) (*problem, int64) {
	pr := &problem{model: m}
	if g, ok := m.(Gradienter); ok {
		pr.grad = g
	}
	ranged := e.opts.XMin < e.opts.XMax
	var entries int64
	for _, b := range s.Bins {
		if ranged && (b.Center < e.opts.XMin || b.Center > e.opts.XMax) {
			continue
		}
		c := float64(b.Count)
		pr.x = append(pr.x, b.Center)
		pr.y = append(pr.y, c)
		pr.sigma = append(pr.sigma, math.Max(math.Sqrt(c), 1.))
		entries += b.Count
	}
	return pr, entries
}

// Fit runs Levenberg-Marquardt from guess, or from m.Guess(s) when guess is
// empty.
//
// When the iteration cap is reached the returned Result has status
// NotConverged and err is a *errs.NonConvergenceError; the parameters are the
// last accepted iterate, not an estimate. Cancelling ctx aborts the fit and
// returns ctx.Err().
func (e *Engine) Fit(ctx context.Context, s histogram.Snapshot, m Model, guess []float64) (*Result, error) {
	names := m.ParamNames()
	nPar := len(names)

	pr, entries := e.selectBins(s, m)
	nBins := len(pr.x)
	if s.Entries == 0 || entries == 0 {
		return nil, &errs.InsufficientDataError{Entries: s.Entries, Bins: nBins, Params: nPar, Reason: "histogram is empty"}
	}
	if entries < e.opts.MinEntries {
		return nil, &errs.InsufficientDataError{Entries: entries, Bins: nBins, Params: nPar,
			Reason: fmt.Sprintf("need at least %d entries in the fit range", e.opts.MinEntries)}
	}
	ndf := nBins - nPar
	if ndf <= 0 {
		return nil, &errs.InsufficientDataError{Entries: entries, Bins: nBins, Params: nPar, Reason: "no degrees of freedom left"}
	}

	var p []float64
	if len(guess) == 0 {
		start, err := m.Guess(s)
		if err != nil {
			return nil, fmt.Errorf("initial guess for %s: %w", m.Name(), err)
		}
		p = start
	} else {
		if len(guess) != nPar {
			return nil, errs.Config("guess", "model %s takes %d parameters, got %d", m.Name(), nPar, len(guess))
		}
		p = append([]float64(nil), guess...)
	}
	if !utils.AllFinite(p) {
		return nil, &errs.NumericalFitError{Reason: fmt.Sprintf("non-finite initial parameters %v", p)}
	}

	log := e.opts.Logger.With().Str("model", m.Name()).Int("bins", nBins).Logger()

	r := make([]float64, nBins)
	rTrial := make([]float64, nBins)
	trial := make([]float64, nPar)
	chi2 := pr.residuals(r, p)
	if math.IsNaN(chi2) || math.IsInf(chi2, 0) {
		return nil, &errs.NumericalFitError{Reason: fmt.Sprintf("non-finite chi-square %v at the initial guess", chi2)}
	}

	jac := mat.NewDense(nBins, nPar, nil)
	var jtj mat.SymDense
	var g mat.VecDense
	damped := mat.NewSymDense(nPar, nil)
	var delta mat.VecDense

	lambda := e.opts.InitialLambda
	converged := false
	lastChange := math.Inf(1)
	iter := 0
	for iter < e.opts.MaxIterations && !converged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iter++

		pr.jacobian(jac, p)
		if err := checkColumns(jac, iter); err != nil {
			return nil, err
		}
		jtj.SymOuterK(1, jac.T())
		if err := checkSingular(&jtj, iter); err != nil {
			return nil, err
		}
		g.MulVec(jac.T(), mat.NewVecDense(nBins, r))

		accepted := false
		for !accepted && lambda <= lambdaMax {
			damped.CopySym(&jtj)
			for j := 0; j < nPar; j++ {
				damped.SetSym(j, j, jtj.At(j, j)*(1.+lambda))
			}
			var chol mat.Cholesky
			if !chol.Factorize(damped) {
				lambda *= lambdaUp
				continue
			}
			if err := chol.SolveVecTo(&delta, &g); err != nil {
				lambda *= lambdaUp
				continue
			}
			for j := range trial {
				trial[j] = p[j] + delta.AtVec(j)
			}
			chi2Trial := pr.residuals(rTrial, trial)
			if !(chi2Trial <= chi2) || !utils.AllFinite(trial) {
				lambda *= lambdaUp
				continue
			}
			accepted = true
			lastChange = utils.MaxRelativeChange(delta.RawVector().Data, trial)
			copy(p, trial)
			copy(r, rTrial)
			chi2 = chi2Trial
			lambda /= lambdaDown
			if lastChange < e.opts.Tolerance {
				converged = true
			}
		}
		if !accepted {
			// no downhill step at any damping: p is a minimum to working precision
			converged = true
			lastChange = 0
		}
		log.Debug().Int("iteration", iter).Float64("chi2", chi2).Float64("lambda", lambda).Float64("change", lastChange).Msg("lm step")
	}

	if n, ok := m.(normalizer); ok {
		n.normalize(p)
	}
	res := &Result{
		Model:      m.Name(),
		ParamNames: append([]string(nil), names...),
		Params:     p,
		ChiSquare:  chi2,
		NDF:        ndf,
		Bins:       nBins,
		Iterations: iter,
		Status:     Converged,
	}
	res.ReducedChiSquare = chi2 / float64(ndf)
	res.PValue = distuv.ChiSquared{K: float64(ndf)}.Survival(chi2)

	pr.jacobian(jac, p)
	jtj.SymOuterK(1, jac.T())
	cov, err := covariance(&jtj, iter)
	if err != nil {
		return nil, err
	}
	if e.opts.ScaleErrors {
		cov.ScaleSym(res.ReducedChiSquare, cov)
	}
	res.Covariance = cov
	res.Errors = make([]float64, nPar)
	for j := range res.Errors {
		res.Errors[j] = math.Sqrt(cov.At(j, j))
	}

	if !converged {
		res.Status = NotConverged
		log.Warn().Int("iterations", iter).Float64("change", lastChange).Msg("fit hit the iteration cap")
		return res, &errs.NonConvergenceError{Iterations: iter, LastChange: lastChange}
	}
	log.Debug().Int("iterations", iter).Float64("chi2_ndf", res.ReducedChiSquare).Msg("fit converged")
	return res, nil
}

func checkColumns(jac *mat.Dense, iter int) error {
	rows, cols := jac.Dims()
	for j := 0; j < cols; j++ {
		zero := true
		for i := 0; i < rows; i++ {
			v := jac.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &errs.NumericalFitError{Iteration: iter, Reason: fmt.Sprintf("non-finite derivative for parameter %d", j)}
			}
			if v != 0 {
				zero = false
			}
		}
		if zero {
			return &errs.NumericalFitError{Iteration: iter, Reason: fmt.Sprintf("singular Jacobian: parameter %d has no effect", j)}
		}
	}
	return nil
}

func checkSingular(jtj *mat.SymDense, iter int) error {
	var chol mat.Cholesky
	if !chol.Factorize(jtj) {
		return &errs.NumericalFitError{Iteration: iter, Reason: "singular Jacobian: normal matrix is not positive definite"}
	}
	if c := chol.Cond(); c > condMax || math.IsNaN(c) {
		return &errs.NumericalFitError{Iteration: iter, Reason: fmt.Sprintf("singular Jacobian: condition number %.3g", c)}
	}
	return nil
}

func covariance(jtj *mat.SymDense, iter int) (*mat.SymDense, error) {
	var chol mat.Cholesky
	if !chol.Factorize(jtj) {
		return nil, &errs.NumericalFitError{Iteration: iter, Reason: "singular Jacobian at the solution"}
	}
	var cov mat.SymDense
	if err := chol.InverseTo(&cov); err != nil {
		return nil, &errs.NumericalFitError{Iteration: iter, Reason: "covariance inversion", Err: err}
	}
	return &cov, nil
}
