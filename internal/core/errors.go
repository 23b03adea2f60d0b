package core

import (
	"errors"
	"staffcore/pkg/domain"
)

var (
	// ErrInvalidRange is returned when a date range ends before it starts.
	ErrInvalidRange = errors.New("invalid date range: start date after end date")
	// ErrMissingField is returned when a required input field is empty.
	ErrMissingField = errors.New("missing required field")
	// ErrRangeTooLong is returned when a schedule request spans too many days.
	ErrRangeTooLong = errors.New("date range too long")
	// ErrInvalidDate is returned when a date string is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")
	// ErrStaleState is returned when another process committed first; the
	// store has already reloaded and the call can be retried.
	ErrStaleState = domain.ErrStaleState
)

// IsNotFound reports whether err wraps a domain not-found error.
func IsNotFound(err error) bool {
	var nf domain.ErrNotFound
	return errors.As(err, &nf)
}

// AsRuleViolation extracts a RuleViolationError from err.
func AsRuleViolation(err error, target *RuleViolationError) bool {
	return errors.As(err, target)
}
