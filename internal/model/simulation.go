// Package model drives Monte Carlo runs: it draws events from an experiment
// generator, fills one histogram per observable and fits models to them.
//
// A Simulation moves through Idle -> Running -> Ready -> Fitting -> Ready.
// Running again from Ready replaces the histograms; a run that fails leaves
// the previous Ready state untouched.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wildstyl3r/mcfit/internal/config"
	"github.com/wildstyl3r/mcfit/internal/errs"
	"github.com/wildstyl3r/mcfit/internal/fit"
	"github.com/wildstyl3r/mcfit/internal/histogram"
)

type State int

const (
	Idle State = iota
	Running
	Ready
	Fitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Ready:
		return "ready"
	case Fitting:
		return "fitting"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrBusy is returned while a run or a fit is in progress.
	ErrBusy = errors.New("simulation busy")
	// ErrNotReady is returned when no completed run is available.
	ErrNotReady = errors.New("simulation has no completed run")
	// ErrNotConfigured is returned by Run before the first Configure.
	ErrNotConfigured = errors.New("simulation not configured")
)

type Options struct {
	Logger zerolog.Logger
	// Fit is the base for every fit; range and iteration settings of a
	// configured fit override it.
	Fit fit.Options
	// CheckEvery is the number of events between context checks.
	CheckEvery int
}

func DefaultOptions() Options {
	return Options{
		Logger:     zerolog.Nop(),
		Fit:        fit.DefaultOptions(),
		CheckEvery: 4096,
	}
}

// RunInfo describes a completed run.
type RunInfo struct {
	ID         uuid.UUID
	Experiment string
	Events     int
	Workers    int
	Seed       uint64
	Elapsed    time.Duration

	// rutherford only
	ThetaMin           float64
	ScatterProbability float64
}

// run holds everything produced by one successful Run.
type run struct {
	info        RunInfo
	observables []string
	histograms  map[string]*histogram.Histogram
	buffer      *histogram.Buffer // primary observable, nil unless buffered
	params      config.ParameterSet
}

type Simulation struct {
	mu    sync.Mutex
	opts  Options
	state State

	params     config.ParameterSet
	generator  Generator
	configured bool

	last *run
}

func New(opts Options) *Simulation {
	def := DefaultOptions()
	if opts.CheckEvery <= 0 {
		opts.CheckEvery = def.CheckEvery
	}
	return &Simulation{opts: opts, state: Idle}
}

func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Configure validates p and keeps it for the next Run. A configuration error
// leaves the previous configuration and the last run in place.
func (s *Simulation) Configure(p config.ParameterSet) error {
	if err := p.Validate(); err != nil {
		return err
	}
	g, err := NewGenerator(p)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Running || s.state == Fitting {
		return ErrBusy
	}
	s.params = p
	s.generator = g
	s.configured = true
	return nil
}

// Run generates the configured number of events and returns a snapshot of
// every histogram keyed by observable.
func (s *Simulation) Run(ctx context.Context) (map[string]histogram.Snapshot, error) {
	s.mu.Lock()
	if s.state == Running || s.state == Fitting {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if !s.configured {
		s.mu.Unlock()
		return nil, ErrNotConfigured
	}
	prev := s.state
	s.state = Running
	p, g := s.params, s.generator
	s.mu.Unlock()

	id := uuid.New()
	log := s.opts.Logger.With().Str("run", id.String()).Str("experiment", p.Experiment).Logger()
	log.Info().Int("events", p.Events).Int("workers", p.Workers).Uint64("seed", p.Seed).Msg("run started")

	start := time.Now()
	r, err := s.generate(ctx, p, g)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state = prev
		log.Error().Err(err).Str("state", prev.String()).Msg("run failed, previous state restored")
		return nil, err
	}
	r.info.ID = id
	r.info.Elapsed = time.Since(start)
	if sc, ok := g.(*scattering); ok {
		r.info.ThetaMin = sc.thetaMin
		r.info.ScatterProbability = sc.target.ScatterProbability(sc.thetaMin)
	}
	s.last = r
	s.state = Ready
	log.Info().Dur("elapsed", r.info.Elapsed).Msg("run finished")
	return r.snapshots(), nil
}

// Rerun configures p and runs it.
func (s *Simulation) Rerun(ctx context.Context, p config.ParameterSet) (map[string]histogram.Snapshot, error) {
	if err := s.Configure(p); err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

func (r *run) snapshots() map[string]histogram.Snapshot {
	out := make(map[string]histogram.Snapshot, len(r.histograms))
	for name, h := range r.histograms {
		out[name] = h.Snapshot()
	}
	return out
}

// ready returns the last run, or an error when there is none.
func (s *Simulation) ready() (*run, error) {
	switch s.state {
	case Running, Fitting:
		return nil, ErrBusy
	case Idle:
		return nil, ErrNotReady
	}
	return s.last, nil
}

// Info describes the last completed run.
func (s *Simulation) Info() (RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return RunInfo{}, err
	}
	return r.info, nil
}

// Observables of the last completed run in generator order.
func (s *Simulation) Observables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	return append([]string(nil), s.last.observables...)
}

// Snapshot of one histogram of the last run.
func (s *Simulation) Snapshot(id string) (histogram.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return histogram.Snapshot{}, err
	}
	h, ok := r.histograms[id]
	if !ok {
		return histogram.Snapshot{}, errs.Config("histogram", "no histogram %q in %s run", id, r.info.Experiment)
	}
	return h.Snapshot(), nil
}

// Fit fits one of the built-in models to a histogram of the last run.
func (s *Simulation) Fit(ctx context.Context, id, modelKind string, guess ...float64) (*fit.Result, error) {
	m, err := fit.ModelByName(modelKind)
	if err != nil {
		return nil, err
	}
	return s.FitModel(ctx, id, m, s.opts.Fit, guess)
}

// FitSpec runs a fit described in the configuration.
func (s *Simulation) FitSpec(ctx context.Context, spec config.FitSpec) (*fit.Result, error) {
	m, err := fit.ModelByName(spec.Model)
	if err != nil {
		return nil, err
	}
	opts := s.opts.Fit
	opts.XMin, opts.XMax = spec.XMin, spec.XMax
	if spec.MaxIterations > 0 {
		opts.MaxIterations = spec.MaxIterations
	}
	opts.ScaleErrors = opts.ScaleErrors || spec.ScaleErrors
	return s.FitModel(ctx, spec.Histogram, m, opts, spec.Guess)
}

// FitModel fits any model. The simulation is Fitting until it returns,
// whatever the outcome; histograms are never modified.
func (s *Simulation) FitModel(ctx context.Context, id string, m fit.Model, opts fit.Options, guess []float64) (*fit.Result, error) {
	s.mu.Lock()
	r, err := s.ready()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	h, ok := r.histograms[id]
	if !ok {
		s.mu.Unlock()
		return nil, errs.Config("histogram", "no histogram %q in %s run", id, r.info.Experiment)
	}
	snapshot := h.Snapshot()
	s.state = Fitting
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = Ready
		s.mu.Unlock()
	}()

	opts.Logger = s.opts.Logger.With().Str("run", r.info.ID.String()).Str("histogram", id).Logger()
	res, err := fit.NewEngine(opts).Fit(ctx, snapshot, m, guess)
	if err != nil {
		return res, fmt.Errorf("fit %s to %s: %w", m.Name(), id, err)
	}
	opts.Logger.Info().Str("model", m.Name()).Float64("chi2_ndf", res.ReducedChiSquare).Msg("fit done")
	return res, nil
}

type Efficiency struct {
	Threshold float64
	Detected  int64
	Total     int64
	Ratio     float64
	StdErr    float64 // binomial
}

// Efficiency counts buffered values v >= threshold over all events of the
// last run.
func (s *Simulation) Efficiency(threshold float64) (Efficiency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return Efficiency{}, err
	}
	if r.buffer == nil || r.buffer.Len() == 0 {
		return Efficiency{}, &errs.InsufficientDataError{Entries: int64(r.info.Events), Reason: "run kept no samples"}
	}
	e := Efficiency{
		Threshold: threshold,
		Detected:  int64(r.buffer.AtLeast(threshold)),
		Total:     int64(r.buffer.Len()),
	}
	e.Ratio = float64(e.Detected) / float64(e.Total)
	e.StdErr = binomialError(e.Ratio, e.Total)
	return e, nil
}

// Summary describes the buffered primary observable of the last run.
func (s *Simulation) Summary() (histogram.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return histogram.Summary{}, err
	}
	if r.buffer == nil {
		return histogram.Summary{}, &errs.InsufficientDataError{Entries: int64(r.info.Events), Reason: "run kept no samples"}
	}
	return r.buffer.Summary()
}

// Samples returns the buffered primary observable of the last run in event
// order.
func (s *Simulation) Samples() ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return nil, err
	}
	if r.buffer == nil {
		return nil, &errs.InsufficientDataError{Entries: int64(r.info.Events), Reason: "run kept no samples"}
	}
	return r.buffer.Values(), nil
}

// Parameters of the last completed run.
func (s *Simulation) Parameters() (config.ParameterSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.ready()
	if err != nil {
		return config.ParameterSet{}, err
	}
	return r.params, nil
}
