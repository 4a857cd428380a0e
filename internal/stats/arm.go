package stats

import (
	"errors"
	"fmt"
)

// Arm is one side of an experiment: the control or a named variant.
type Arm struct {
	Name      string `json:"name" yaml:"name"`
	Trials    int    `json:"trials" yaml:"trials"`
	Successes int    `json:"successes" yaml:"successes"`
}

// ConversionRate returns successes/trials, or 0 when there are no trials.
func (a Arm) ConversionRate() float64 {
	return rate(a.Successes, a.Trials)
}

// Validate reports counts that cannot describe a binomial observation.
func (a Arm) Validate() error {
	if a.Trials < 0 {
		return &ValidationError{Field: "trials", Reason: fmt.Sprintf("arm %q has negative trials", a.Name)}
	}
	if a.Successes < 0 {
		return &ValidationError{Field: "successes", Reason: fmt.Sprintf("arm %q has negative successes", a.Name)}
	}
	if a.Successes > a.Trials {
		return &ValidationError{Field: "successes", Reason: fmt.Sprintf("arm %q has more successes (%d) than trials (%d)", a.Name, a.Successes, a.Trials)}
	}
	return nil
}

func rate(successes, trials int) float64 {
	if trials <= 0 {
		return 0
	}
	return float64(successes) / float64(trials)
}

// ValidationError reports malformed or missing input. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
