// Package delivery walks a recipient's configured contact steps for a
// letter, checkpointing browser state so a paused delivery resumes exactly
// where it stopped.
package delivery

import (
	"context"
	"fmt"

	"formageddon/internal/application/port/input"
	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
	"formageddon/internal/usecase/snapshot"
)

const errRecipientNotConfigured = entity.ErrorPrefix + "Recipient not configured for message delivery!"

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Sessions output.SessionFactory
	Store    output.DeliveryStore
	Executor *Executor
	Logger   output.LoggerPort
}

// Orchestrator is the letter-level state machine. Implements
// input.LetterSender.
type Orchestrator struct {
	sessions output.SessionFactory
	store    output.DeliveryStore
	executor *Executor
	logger   output.LoggerPort
}

var _ input.LetterSender = (*Orchestrator)(nil)

func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	return &Orchestrator{
		sessions: cfg.Sessions,
		store:    cfg.Store,
		executor: cfg.Executor,
		logger:   cfg.Logger,
	}
}

// Send implements input.LetterSender. START and RETRY run every step from
// the beginning; TRYING_CAPTCHA and RETRY_STEP resume from the most recent
// attempt's recorded step on a session rebuilt from its checkpoint.
func (o *Orchestrator) Send(ctx context.Context, letter *entity.Letter, recipient *entity.Recipient, opts input.SendOptions) (*input.SendResult, error) {
	if !recipient.Configured() {
		letter.Status = errRecipientNotConfigured
		if err := o.store.SaveLetter(ctx, letter); err != nil {
			return nil, err
		}
		return &input.SendResult{Delivered: false, Status: letter.Status}, nil
	}
	recipient.EnsureStepNumbers()

	switch letter.Status {
	case entity.StatusStart, entity.StatusRetry:
		sess, err := o.sessions(ctx)
		if err != nil {
			return nil, fmt.Errorf("send letter %s: %w", letter.ID, err)
		}
		return o.run(ctx, sess, letter, recipient, 1, nil, opts)

	case entity.StatusTryingCaptcha, entity.StatusRetryStep:
		return o.resume(ctx, letter, recipient, opts)

	default:
		return nil, fmt.Errorf("send letter %s: cannot send in status %q: %w",
			letter.ID, letter.Status, entity.ErrInvalidInput)
	}
}

func (o *Orchestrator) resume(ctx context.Context, letter *entity.Letter, recipient *entity.Recipient, opts input.SendOptions) (*input.SendResult, error) {
	attempt, err := o.store.LatestAttempt(ctx, letter.ID)
	if err != nil {
		return nil, fmt.Errorf("resume letter %s: %w", letter.ID, err)
	}
	if attempt == nil {
		return nil, fmt.Errorf("resume letter %s: no prior attempt: %w", letter.ID, entity.ErrInconsistentResume)
	}

	// guard: a TRYING_CAPTCHA letter whose last attempt did not end in a
	// captcha outcome is in a weird state; abort without mutating anything
	if letter.Status == entity.StatusTryingCaptcha && !attempt.HasCaptchaOutcome() {
		return nil, fmt.Errorf("resume letter %s: last attempt result %q: %w",
			letter.ID, attempt.Result, entity.ErrInconsistentResume)
	}

	sess, err := o.sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume letter %s: %w", letter.ID, err)
	}
	state, kind := attempt.ResumeState()
	if err := snapshot.Restore(sess, state); err != nil {
		return nil, fmt.Errorf("resume letter %s: %w", letter.ID, err)
	}
	o.logger.Info("resuming delivery", "letter", letter.ID,
		"step", attempt.LetterContactStep, "checkpoint", string(kind))

	if opts.CaptchaSolution != "" {
		letter.CaptchaSolution = opts.CaptchaSolution
	}

	return o.run(ctx, sess, letter, recipient, attempt.LetterContactStep, attempt.CaptchaState, opts)
}

// run creates the delivery attempt for this execution and walks the steps
// until one reports a non-continue outcome.
func (o *Orchestrator) run(ctx context.Context, sess output.Session, letter *entity.Letter, recipient *entity.Recipient, startStep int, priorCaptchaState *entity.BrowserState, opts input.SendOptions) (*input.SendResult, error) {
	var attempt *entity.DeliveryAttempt
	if opts.SaveStates {
		var err error
		attempt, err = o.store.CreateAttempt(ctx, letter.ID)
		if err != nil {
			return nil, fmt.Errorf("send letter %s: %w", letter.ID, err)
		}
		if priorCaptchaState != nil {
			if err := o.store.SaveState(ctx, attempt, entity.StateCaptcha, priorCaptchaState); err != nil {
				return nil, fmt.Errorf("send letter %s: %w", letter.ID, err)
			}
		}
	}

	in := StepInput{Letter: letter, Attempt: attempt, SaveStates: opts.SaveStates}
	delivered := true
	for _, step := range recipient.StepsFrom(startStep) {
		cont, err := o.executor.Execute(ctx, sess, step, in)
		if err != nil {
			return nil, err
		}
		if !cont {
			delivered = false
			break
		}
	}

	o.logger.Info("delivery run finished", "letter", letter.ID,
		"delivered", delivered, "status", letter.Status)
	return &input.SendResult{Delivered: delivered, Status: letter.Status}, nil
}
