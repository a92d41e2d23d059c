package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

// MemoryStore is the in-memory DeliveryStore used by tests and dry runs.
type MemoryStore struct {
	mu       sync.Mutex
	attempts []*entity.DeliveryAttempt
	letters  map[string]entity.Letter
}

var _ output.DeliveryStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{letters: make(map[string]entity.Letter)}
}

func (m *MemoryStore) CreateAttempt(_ context.Context, letterID string) (*entity.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	attempt := &entity.DeliveryAttempt{
		ID:        uuid.NewString(),
		LetterID:  letterID,
		CreatedAt: time.Now().UTC(),
	}
	m.attempts = append(m.attempts, attempt)
	return attempt, nil
}

func (m *MemoryStore) SaveAttempt(_ context.Context, _ *entity.DeliveryAttempt) error {
	return nil // attempts are shared pointers here; mutation is the save
}

func (m *MemoryStore) SaveState(_ context.Context, attempt *entity.DeliveryAttempt, kind entity.StateKind, state *entity.BrowserState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	attempt.SetState(kind, state)
	return nil
}

func (m *MemoryStore) LatestAttempt(_ context.Context, letterID string) (*entity.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := len(m.attempts) - 1; i >= 0; i-- {
		if m.attempts[i].LetterID == letterID {
			return m.attempts[i], nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) SaveLetter(_ context.Context, letter *entity.Letter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *letter
	saved.Thread = nil
	saved.CaptchaSolution = ""
	m.letters[letter.ID] = saved
	return nil
}

func (m *MemoryStore) LoadLetter(_ context.Context, id string) (*entity.Letter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved, ok := m.letters[id]
	if !ok {
		return nil, nil
	}
	letter := saved
	return &letter, nil
}

// SavedStatus reports the last persisted status for a letter, for tests.
func (m *MemoryStore) SavedStatus(letterID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved, ok := m.letters[letterID]
	return saved.Status, ok
}

// Attempts returns all attempts in creation order, for tests.
func (m *MemoryStore) Attempts() []*entity.DeliveryAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.DeliveryAttempt, len(m.attempts))
	copy(out, m.attempts)
	return out
}
