package output

import (
	"context"

	"formageddon/internal/domain/entity"
)

// DeliveryStore persists letters, delivery attempts and their browser state
// checkpoints. A checkpoint and the attempt row referencing it must be
// written in the same transaction so a resumed delivery never observes one
// without the other.
type DeliveryStore interface {
	// CreateAttempt opens a new attempt row for the letter.
	CreateAttempt(ctx context.Context, letterID string) (*entity.DeliveryAttempt, error)

	// SaveAttempt persists the attempt's step number and result.
	SaveAttempt(ctx context.Context, attempt *entity.DeliveryAttempt) error

	// SaveState writes (or overwrites) the attempt's checkpoint of the given
	// kind together with the attempt row itself.
	SaveState(ctx context.Context, attempt *entity.DeliveryAttempt, kind entity.StateKind, state *entity.BrowserState) error

	// LatestAttempt returns the most recent attempt for the letter, nil if
	// none exist.
	LatestAttempt(ctx context.Context, letterID string) (*entity.DeliveryAttempt, error)

	// SaveLetter persists the letter's current status.
	SaveLetter(ctx context.Context, letter *entity.Letter) error

	// LoadLetter returns the stored letter, nil if unknown. Sender details
	// are not persisted and must be reattached by the caller.
	LoadLetter(ctx context.Context, id string) (*entity.Letter, error)
}
