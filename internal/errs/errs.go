// Package errs holds the error taxonomy shared by the sampler, the fit engine
// and the simulation driver.
//
// Every typed error matches its sentinel through errors.Is, so callers can
// branch either on the kind (errors.Is(err, errs.ErrConfiguration)) or on the
// details (errors.As(err, &cfgErr)).
package errs

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration    = errors.New("invalid configuration")
	ErrInsufficientData = errors.New("insufficient data")
	ErrNumericalFit     = errors.New("numerical fit failure")
	ErrNonConvergence   = errors.New("fit did not converge")
)

// ConfigurationError reports a parameter outside its domain. It is always
// raised before any sampling starts.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Field != "" && e.Err != nil:
		return fmt.Sprintf("configuration: %s: %s: %v", e.Field, e.Reason, e.Err)
	case e.Field != "":
		return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// Config builds a ConfigurationError for a single field.
func Config(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InsufficientDataError is returned when a fit is requested on a histogram
// that cannot constrain the model.
type InsufficientDataError struct {
	Entries int64
	Bins    int
	Params  int
	Reason  string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s (entries=%d, bins=%d, params=%d)", e.Reason, e.Entries, e.Bins, e.Params)
}

func (e *InsufficientDataError) Is(target error) bool { return target == ErrInsufficientData }

// NumericalFitError covers a singular normal matrix or non-finite values met
// while iterating.
type NumericalFitError struct {
	Iteration int
	Reason    string
	Err       error
}

func (e *NumericalFitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("numerical fit error at iteration %d: %s: %v", e.Iteration, e.Reason, e.Err)
	}
	return fmt.Sprintf("numerical fit error at iteration %d: %s", e.Iteration, e.Reason)
}

func (e *NumericalFitError) Unwrap() error { return e.Err }

func (e *NumericalFitError) Is(target error) bool { return target == ErrNumericalFit }

// NonConvergenceError means the iteration cap was hit. The accompanying
// result is valid but inconclusive.
type NonConvergenceError struct {
	Iterations int
	LastChange float64
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("fit did not converge after %d iterations (last relative change %.3g)", e.Iterations, e.LastChange)
}

func (e *NonConvergenceError) Is(target error) bool { return target == ErrNonConvergence }
