package delivery

import (
	"context"
	"errors"
	"fmt"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
	"formageddon/internal/usecase/captcha"
	"formageddon/internal/usecase/confirm"
	"formageddon/internal/usecase/fill"
	"formageddon/internal/usecase/snapshot"
)

// Confirmation warnings, persisted verbatim as letter status and attempt
// result.
const (
	warnNoConfirmationConfigured = entity.WarningPrefix + "Confirmation message is blank. Unable to confirm delivery."
	warnConfirmationNotFound     = entity.WarningPrefix + "Confirmation message not found."
)

// ExecutorConfig wires a step executor.
type ExecutorConfig struct {
	Fill    *fill.Engine
	Captcha *captcha.Coordinator
	Store   output.DeliveryStore
	Logger  output.LoggerPort

	// DefaultParams are forced name→value overrides written into any
	// matching control after field filling, for site-specific quirks.
	DefaultParams map[string]string
}

// Executor runs one configured contact step against a session, converting
// every delivery-time failure into a persisted letter status and attempt
// result. Only caller bugs (submitting without a letter, malformed step
// config) escape as errors.
type Executor struct {
	fill          *fill.Engine
	captcha       *captcha.Coordinator
	store         output.DeliveryStore
	logger        output.LoggerPort
	defaultParams map[string]string
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	return &Executor{
		fill:          cfg.Fill,
		captcha:       cfg.Captcha,
		store:         cfg.Store,
		logger:        cfg.Logger,
		defaultParams: cfg.DefaultParams,
	}
}

// StepInput is the per-run context a step executes with.
type StepInput struct {
	Letter     *entity.Letter
	Attempt    *entity.DeliveryAttempt
	SaveStates bool
}

// Execute runs the step. The returned bool is the continue flag: false stops
// the delivery sequence, durable state sufficient to resume having been
// saved already.
func (x *Executor) Execute(ctx context.Context, sess output.Session, step *entity.ContactStep, in StepInput) (bool, error) {
	x.logger.Debug("executing contact step", "step", step.StepNumber, "command", step.Command)

	if in.SaveStates && in.Attempt != nil {
		in.Attempt.LetterContactStep = step.StepNumber
		if err := x.store.SaveAttempt(ctx, in.Attempt); err != nil {
			return false, err
		}
	}

	if url, ok := step.IsVisit(); ok {
		return x.executeVisit(ctx, sess, url, in)
	}
	if step.IsSubmit() {
		return x.executeSubmit(ctx, sess, step, in)
	}
	return false, fmt.Errorf("%s: unknown command: %w", step, entity.ErrInvalidInput)
}

func (x *Executor) executeVisit(ctx context.Context, sess output.Session, url string, in StepInput) (bool, error) {
	if _, err := sess.Fetch(ctx, url); err != nil {
		// transport errors, timeouts included, are recoverable: record and
		// stop the sequence
		x.recordError(ctx, err, in)
		return false, nil
	}
	return true, nil
}

func (x *Executor) executeSubmit(ctx context.Context, sess output.Session, step *entity.ContactStep, in StepInput) (bool, error) {
	letter := in.Letter
	if letter == nil {
		return false, fmt.Errorf("%s: a letter is required to submit: %w", step, entity.ErrInvalidInput)
	}
	form := step.Form
	if form == nil {
		return false, fmt.Errorf("%s: no form configured: %w", step, entity.ErrInvalidInput)
	}

	x.saveState(ctx, sess, entity.StateBefore, in)

	if x.captcha.RequiresChallenge(form) && letter.CaptchaSolution == "" {
		answer, serr := x.captcha.TrySolve(ctx, sess, form, letter)
		if serr != nil {
			if !errors.Is(serr, entity.ErrNotImplemented) {
				x.logger.Warn("automatic challenge solve failed", "letter", letter.ID, "error", serr)
			}
			return false, x.pauseForChallenge(ctx, sess, form, in)
		}
		letter.CaptchaSolution = answer
		x.saveLetterStatus(ctx, letter, entity.StatusTryingCaptcha, in)
	}

	consumed := x.redeemIfNeeded(ctx, sess, form, in)
	if consumed == nil { // redemption failed; already downgraded
		return false, nil
	}

	doc := sess.Document()
	for _, ff := range form.OrderedFields() {
		if consumed[ff.CSSSelector] || (form.SecondaryChallenge != nil && ff.Value == entity.FieldCaptchaSolution) {
			continue
		}
		if err := x.fill.Fill(ctx, doc, form, ff, letter); err != nil {
			x.recordError(ctx, fmt.Errorf("filling %q: %w", ff.CSSSelector, err), in)
			return false, nil
		}
	}

	// forced site-specific overrides, applied after field filling
	for name, value := range x.defaultParams {
		doc.Find(fmt.Sprintf("[name=%q]", name)).SetAttr("value", value)
	}

	respDoc, err := sess.SubmitForm(ctx, form.SubmitCSSSelector)
	if err != nil {
		x.recordError(ctx, err, in)
		x.saveState(ctx, sess, entity.StateAfter, in)
		return false, nil
	}

	switch confirm.Classify(respDoc, form) {
	case confirm.Success:
		x.saveLetterStatus(ctx, letter, entity.StatusSent, in)
		x.saveResult(ctx, entity.ResultSuccess, in)
		// after-state saved post-classification on the happy path, kept in
		// case of false positives
		x.saveState(ctx, sess, entity.StateAfter, in)
		return true, nil

	case confirm.Ambiguous:
		// soft success: delivery cannot be disproved
		x.saveLetterStatus(ctx, letter, warnNoConfirmationConfigured, in)
		x.saveState(ctx, sess, entity.StateAfter, in)
		x.saveResult(ctx, warnNoConfirmationConfigured, in)
		return true, nil

	default:
		x.saveState(ctx, sess, entity.StateAfter, in)
		if letter.InCaptchaRetry() {
			// assume the captcha was wrong
			x.saveLetterStatus(ctx, letter, entity.StatusCaptchaRequired, in)
			if _, cerr := x.captcha.CaptureChallenge(ctx, sess, form, letter); cerr != nil {
				x.logger.Warn("fresh challenge capture failed", "letter", letter.ID, "error", cerr)
			}
			x.saveResult(ctx, entity.ResultCaptchaWrong, in)
		} else {
			x.saveLetterStatus(ctx, letter, warnConfirmationNotFound, in)
			x.saveResult(ctx, warnConfirmationNotFound, in)
		}
		return false, nil
	}
}

// pauseForChallenge stops a submission that needs a solution nobody supplied:
// flag the letter, persist the attempt result, capture the challenge image.
func (x *Executor) pauseForChallenge(ctx context.Context, sess output.Session, form *entity.Form, in StepInput) error {
	x.saveLetterStatus(ctx, in.Letter, entity.StatusCaptchaRequired, in)
	x.saveResult(ctx, entity.ResultCaptchaRequired, in)

	if _, err := x.captcha.CaptureChallenge(ctx, sess, form, in.Letter); err != nil {
		// no configured image means there is nothing to capture; the pause
		// stands and the solution arrives out of band
		if errors.Is(err, captcha.ErrNoChallengeImage) {
			x.logger.Info("no challenge image to capture", "letter", in.Letter.ID)
			return nil
		}
		x.recordError(ctx, fmt.Errorf("saving captcha: %w", err), in)
		x.saveState(ctx, sess, entity.StateAfter, in)
	}
	return nil
}

// redeemIfNeeded runs the secondary-challenge redemption when configured and
// a solution is present. Returns the set of selectors consumed by the
// redemption, or nil after a failure (downgraded to CAPTCHA_WRONG with a
// fresh challenge captured).
func (x *Executor) redeemIfNeeded(ctx context.Context, sess output.Session, form *entity.Form, in StepInput) map[string]bool {
	consumed := map[string]bool{}
	spec := form.SecondaryChallenge
	if spec == nil || in.Letter.CaptchaSolution == "" {
		return consumed
	}

	var prior *entity.BrowserState
	if in.Attempt != nil {
		prior = in.Attempt.BeforeState
	}

	token, capState, err := x.captcha.Redeem(ctx, spec, in.Letter, prior)
	if err != nil {
		x.logger.Warn("challenge redemption failed", "letter", in.Letter.ID, "error", err)
		x.saveLetterStatus(ctx, in.Letter, entity.StatusCaptchaWrong, in)
		x.saveResult(ctx, entity.ResultCaptchaWrong, in)
		if _, cerr := x.captcha.CaptureChallenge(ctx, sess, form, in.Letter); cerr != nil {
			x.logger.Warn("fresh challenge capture failed", "letter", in.Letter.ID, "error", cerr)
		}
		x.saveState(ctx, sess, entity.StateAfter, in)
		return nil
	}

	if in.SaveStates && in.Attempt != nil {
		if serr := x.store.SaveState(ctx, in.Attempt, entity.StateCaptcha, capState); serr != nil {
			x.logger.Error("saving captcha state failed", "error", serr)
		}
	}

	sess.Document().Find(spec.TokenFieldCSSSelector).SetAttr("value", token)
	consumed[spec.TokenFieldCSSSelector] = true
	return consumed
}

// saveState checkpoints the session under the given kind; checkpoint
// failures are logged, not fatal, so a delivery is never aborted by its own
// audit trail.
func (x *Executor) saveState(ctx context.Context, sess output.Session, kind entity.StateKind, in StepInput) {
	if !in.SaveStates || in.Attempt == nil {
		return
	}
	st, err := snapshot.Take(sess)
	if err != nil {
		x.logger.Error("checkpoint failed", "kind", string(kind), "error", err)
		return
	}
	if err := x.store.SaveState(ctx, in.Attempt, kind, st); err != nil {
		x.logger.Error("checkpoint failed", "kind", string(kind), "error", err)
	}
}

func (x *Executor) saveLetterStatus(ctx context.Context, letter *entity.Letter, status string, in StepInput) {
	letter.Status = status
	if err := x.store.SaveLetter(ctx, letter); err != nil {
		x.logger.Error("saving letter status failed", "letter", letter.ID, "error", err)
	}
}

func (x *Executor) saveResult(ctx context.Context, result string, in StepInput) {
	if !in.SaveStates || in.Attempt == nil {
		return
	}
	in.Attempt.Result = result
	if err := x.store.SaveAttempt(ctx, in.Attempt); err != nil {
		x.logger.Error("saving attempt result failed", "error", err)
	}
}

// recordError converts a delivery-time error into the persisted ERROR status
// and result.
func (x *Executor) recordError(ctx context.Context, err error, in StepInput) {
	msg := entity.ErrorPrefix + err.Error()
	x.logger.Error("contact step failed", "error", err)

	if in.Letter != nil {
		x.saveLetterStatus(ctx, in.Letter, msg, in)
	}
	x.saveResult(ctx, msg, in)
}
