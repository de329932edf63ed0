package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelMatching(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
	}{
		{Config("events", "must be positive"), ErrConfiguration},
		{&InsufficientDataError{Reason: "empty"}, ErrInsufficientData},
		{&NumericalFitError{Iteration: 3, Reason: "singular"}, ErrNumericalFit},
		{&NonConvergenceError{Iterations: 200}, ErrNonConvergence},
	}
	all := []error{ErrConfiguration, ErrInsufficientData, ErrNumericalFit, ErrNonConvergence}
	for _, tc := range cases {
		wrapped := fmt.Errorf("run: %w", tc.err)
		for _, s := range all {
			assert.Equal(t, s == tc.sentinel, errors.Is(wrapped, s), "%v against %v", tc.err, s)
		}
	}
}

func TestConfigurationErrorDetails(t *testing.T) {
	err := fmt.Errorf("configure: %w", Config("sigma", "must be positive, got %g", -1.))
	var cfg *ConfigurationError
	assert.ErrorAs(t, err, &cfg)
	assert.Equal(t, "sigma", cfg.Field)
	assert.Equal(t, "configuration: sigma: must be positive, got -1", cfg.Error())

	cause := errors.New("toml: bare keys cannot contain '!'")
	wrapped := &ConfigurationError{Reason: "parse", Err: cause}
	assert.ErrorIs(t, wrapped, cause)
	assert.Contains(t, wrapped.Error(), "bare keys")
}
