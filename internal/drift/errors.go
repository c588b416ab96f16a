package drift

import "errors"

var (
	// ErrValidation marks input problems that fail a run before any metric is
	// computed. Never retried automatically.
	ErrValidation = errors.New("validation error")

	// ErrComputation marks unexpected numeric edge cases. Caught per feature
	// where possible so one bad column does not abort the whole run.
	ErrComputation = errors.New("computation error")

	// ErrEmptySample is returned when an estimator receives no values.
	ErrEmptySample = errors.New("empty sample")
)
