package output

import (
	"context"

	"formageddon/internal/domain/entity"
)

// ChallengeSink receives captured challenge images. The production sink
// writes them under the configured temp directory keyed by letter id, where
// a human or an external solver picks them up.
type ChallengeSink interface {
	// Put stores the raw challenge image for the letter and returns the
	// path (or other locator) it is retrievable at.
	Put(ctx context.Context, letterID string, image []byte) (string, error)
}

// Solver produces a captcha solution from a challenge image. Implementations
// that are not configured return entity.ErrNotImplemented, leaving the
// challenge to a human.
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// ChoiceQuery carries the context a choice delegate gets to pick among the
// options of a select or radio group.
type ChoiceQuery struct {
	Letter  *entity.Letter
	Field   string
	Options []string
	Default string
}

// ChoiceDelegate may override the computed value for a choice control.
// Return entity.ErrNotImplemented to keep the computed default.
type ChoiceDelegate interface {
	ChooseValue(ctx context.Context, q ChoiceQuery) (string, error)
}
