package input

import (
	"context"

	"formageddon/internal/domain/entity"
)

// SendOptions tune one delivery run.
type SendOptions struct {
	// CaptchaSolution is forwarded to the letter when resuming a paused
	// delivery.
	CaptchaSolution string

	// SaveStates disables checkpointing when false. Used by configuration
	// dry runs; defaults to true through NewSendOptions.
	SaveStates bool
}

// NewSendOptions returns the defaults for a live delivery.
func NewSendOptions() SendOptions {
	return SendOptions{SaveStates: true}
}

// SendResult summarizes one delivery run.
type SendResult struct {
	// Delivered is true when every step reported continue, i.e. the
	// sequence ran to completion.
	Delivered bool

	// Status is the letter's status after the run.
	Status string
}

// LetterSender drives a letter through its recipient's configured steps,
// resuming from checkpoints when the letter status calls for it.
type LetterSender interface {
	Send(ctx context.Context, letter *entity.Letter, recipient *entity.Recipient, opts SendOptions) (*SendResult, error)
}
