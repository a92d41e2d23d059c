package entity

import "time"

// StateKind names the checkpoint slots a delivery attempt may hold.
type StateKind string

const (
	StateBefore  StateKind = "before"
	StateAfter   StateKind = "after"
	StateCaptcha StateKind = "captcha"
)

// Attempt result codes. Like letter statuses these are persisted strings;
// WARNING/ERROR results embed their message.
const (
	ResultSuccess         = "SUCCESS"
	ResultCaptchaRequired = "CAPTCHA_REQUIRED"
	ResultCaptchaWrong    = "CAPTCHA_WRONG"
)

// BrowserState is one immutable-per-write checkpoint of a browsing session:
// enough to rebuild an equivalent document and cookie state.
type BrowserState struct {
	URI       string
	CookieJar []byte
	RawHTML   string
}

// DeliveryAttempt records one execution run of the step sequence for a
// letter: the step it stopped at, the terminal result, and up to three
// browser state checkpoints.
type DeliveryAttempt struct {
	ID       string
	LetterID string

	// LetterContactStep is the step number the attempt paused or stopped at.
	LetterContactStep int
	Result            string

	BeforeState  *BrowserState
	AfterState   *BrowserState
	CaptchaState *BrowserState

	CreatedAt time.Time
}

// HasCaptchaOutcome reports whether the attempt ended in one of the two
// resumable captcha results.
func (a *DeliveryAttempt) HasCaptchaOutcome() bool {
	return a.Result == ResultCaptchaRequired || a.Result == ResultCaptchaWrong
}

// ResumeState picks the checkpoint a resumed delivery restores from: the
// after-state when the last solution was wrong (the failed submission already
// advanced the session), the before-state otherwise.
func (a *DeliveryAttempt) ResumeState() (*BrowserState, StateKind) {
	if a.Result == ResultCaptchaWrong {
		return a.AfterState, StateAfter
	}
	return a.BeforeState, StateBefore
}

// State returns the checkpoint of the given kind, nil if never saved.
func (a *DeliveryAttempt) State(kind StateKind) *BrowserState {
	switch kind {
	case StateBefore:
		return a.BeforeState
	case StateAfter:
		return a.AfterState
	case StateCaptcha:
		return a.CaptchaState
	}
	return nil
}

// SetState stores a checkpoint under the given kind, overwriting in place.
func (a *DeliveryAttempt) SetState(kind StateKind, st *BrowserState) {
	switch kind {
	case StateBefore:
		a.BeforeState = st
	case StateAfter:
		a.AfterState = st
	case StateCaptcha:
		a.CaptchaState = st
	}
}
