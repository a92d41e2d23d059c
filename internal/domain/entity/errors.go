package entity

import "errors"

var (
	// ErrFieldNotFound means a css selector resolved to no element on the
	// current document. Fatal for the step being executed.
	ErrFieldNotFound = errors.New("field not found")

	// ErrUnknownField means a semantic field name has no resolution against
	// the letter or its thread.
	ErrUnknownField = errors.New("unknown semantic field")

	// ErrInvalidInput marks caller bugs: a malformed letter, or a form
	// submission requested without one. These escape to the caller instead
	// of being converted into a letter status.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInconsistentResume means a TRYING_CAPTCHA letter's latest attempt
	// does not carry a captcha outcome; resuming would corrupt state.
	ErrInconsistentResume = errors.New("inconsistent resume state")

	// ErrNotImplemented is the opt-out sentinel for optional hooks
	// (choice delegates, solvers). The computed default is used instead.
	ErrNotImplemented = errors.New("not implemented")
)
