package entity

import (
	"fmt"
	"strings"
)

// Letter statuses. These are persisted strings, not an enum: WARNING/ERROR
// statuses carry a human-readable message after the prefix.
const (
	StatusStart           = "START"
	StatusRetry           = "RETRY"
	StatusRetryStep       = "RETRY_STEP"
	StatusTryingCaptcha   = "TRYING_CAPTCHA"
	StatusCaptchaRequired = "CAPTCHA_REQUIRED"
	StatusCaptchaWrong    = "CAPTCHA_WRONG"
	StatusSent            = "SENT"

	WarningPrefix = "WARNING: "
	ErrorPrefix   = "ERROR: "
)

const (
	// MaxSubjectLen is the validation cap applied before a letter is accepted.
	MaxSubjectLen = 1000
	// MaxMessageLen caps the message body.
	MaxMessageLen = 25000

	// storedSubjectLen is the length subjects are truncated to on creation.
	storedSubjectLen = 255
)

// Thread groups letters by recipient and carries the sender attributes that
// back semantic field resolution. Field names follow the configured semantic
// field vocabulary (title, first_name, last_name, email, phone, address1,
// address2, city, state, zip5, zip4).
type Thread struct {
	ID          int64
	RecipientID string

	SenderTitle     string
	SenderFirstName string
	SenderLastName  string
	SenderEmail     string
	SenderPhone     string
	SenderAddress1  string
	SenderAddress2  string
	SenderCity      string
	SenderState     string
	SenderZip5      string
	SenderZip4      string
}

// senderAttr resolves a sender attribute by its semantic field name.
func (t *Thread) senderAttr(field string) (string, bool) {
	switch field {
	case "title":
		return t.SenderTitle, true
	case "first_name":
		return t.SenderFirstName, true
	case "last_name":
		return t.SenderLastName, true
	case "email":
		return t.SenderEmail, true
	case "phone":
		return t.SenderPhone, true
	case "address1":
		return t.SenderAddress1, true
	case "address2":
		return t.SenderAddress2, true
	case "city":
		return t.SenderCity, true
	case "state":
		return t.SenderState, true
	case "zip5":
		return t.SenderZip5, true
	case "zip4":
		return t.SenderZip4, true
	}
	return "", false
}

// Letter is the message being delivered through a recipient's contact form.
type Letter struct {
	ID        string
	Thread    *Thread
	Subject   string
	Message   string
	IssueArea string
	Status    string

	// CaptchaSolution is supplied at send time only and never persisted.
	CaptchaSolution string
}

// NewLetter validates and creates a letter. Subjects longer than the stored
// limit are truncated with a trailing ellipsis, matching historical behavior.
func NewLetter(id string, thread *Thread, subject, message string) (*Letter, error) {
	if strings.TrimSpace(subject) == "" {
		return nil, fmt.Errorf("letter: %w: you must enter a letter subject", ErrInvalidInput)
	}
	if strings.TrimSpace(message) == "" {
		return nil, fmt.Errorf("letter: %w: you must enter some content in your message", ErrInvalidInput)
	}
	if len(subject) > MaxSubjectLen {
		return nil, fmt.Errorf("letter: %w: subject exceeds %d characters", ErrInvalidInput, MaxSubjectLen)
	}
	if len(message) > MaxMessageLen {
		return nil, fmt.Errorf("letter: %w: message exceeds %d characters", ErrInvalidInput, MaxMessageLen)
	}

	return &Letter{
		ID:      id,
		Thread:  thread,
		Subject: truncate(subject, storedSubjectLen),
		Message: message,
		Status:  StatusStart,
	}, nil
}

// ValueFor resolves a semantic field name against the letter and its thread.
// Unknown fields fail closed.
func (l *Letter) ValueFor(field string) (string, error) {
	switch field {
	case "message":
		return l.Message, nil
	case "subject":
		return l.Subject, nil
	case "issue_area":
		return l.IssueArea, nil
	case "full_name":
		return fmt.Sprintf("%s %s", l.Thread.SenderFirstName, l.Thread.SenderLastName), nil
	case "captcha_solution":
		return l.CaptchaSolution, nil
	}
	if v, ok := l.Thread.senderAttr(field); ok {
		return v, nil
	}
	return "", fmt.Errorf("letter: no value for field %q: %w", field, ErrUnknownField)
}

// InCaptchaRetry reports whether the letter is mid captcha retry, which
// changes how a failed confirmation is classified.
func (l *Letter) InCaptchaRetry() bool {
	return l.Status == StatusTryingCaptcha
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const omission = "..."
	return s[:max-len(omission)] + omission
}
