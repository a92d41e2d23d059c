// Package statestore persists letters, delivery attempts and browser state
// checkpoints in SQLite.
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

// Store wraps the checkpoint database. Implements output.DeliveryStore.
type Store struct {
	db *sql.DB
}

var _ output.DeliveryStore = (*Store)(nil)

// Open opens (creating if needed) the store at path and applies pragmas and
// schema. WAL plus synchronous=NORMAL keeps checkpoint writes durable
// without per-write fsync stalls.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("statestore: create dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("statestore: open %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("statestore: %s: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("statestore: apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-process store for tests.
func OpenMemory() (*Store, error) {
	return Open("file::memory:?cache=shared")
}

func (s *Store) Close() error { return s.db.Close() }

// CreateAttempt implements output.DeliveryStore.
func (s *Store) CreateAttempt(ctx context.Context, letterID string) (*entity.DeliveryAttempt, error) {
	attempt := &entity.DeliveryAttempt{
		ID:        uuid.NewString(),
		LetterID:  letterID,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_attempts (id, letter_id, letter_contact_step, result, created_at)
		 VALUES (?, ?, 0, '', ?)`,
		attempt.ID, attempt.LetterID, attempt.CreatedAt.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("statestore: create attempt: %w", err)
	}
	return attempt, nil
}

// SaveAttempt implements output.DeliveryStore.
func (s *Store) SaveAttempt(ctx context.Context, attempt *entity.DeliveryAttempt) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE delivery_attempts SET letter_contact_step = ?, result = ? WHERE id = ?`,
		attempt.LetterContactStep, attempt.Result, attempt.ID)
	if err != nil {
		return fmt.Errorf("statestore: save attempt %s: %w", attempt.ID, err)
	}
	return nil
}

// SaveState implements output.DeliveryStore. The checkpoint row and the
// attempt's step/result land in one transaction so a resume never sees a
// result without its checkpoint.
func (s *Store) SaveState(ctx context.Context, attempt *entity.DeliveryAttempt, kind entity.StateKind, state *entity.BrowserState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("statestore: save state: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO browser_states (attempt_id, kind, uri, cookie_jar, raw_html, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (attempt_id, kind) DO UPDATE SET
		   uri = excluded.uri, cookie_jar = excluded.cookie_jar,
		   raw_html = excluded.raw_html, saved_at = excluded.saved_at`,
		attempt.ID, string(kind), state.URI, state.CookieJar, state.RawHTML, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("statestore: save %s state: %w", kind, err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE delivery_attempts SET letter_contact_step = ?, result = ? WHERE id = ?`,
		attempt.LetterContactStep, attempt.Result, attempt.ID)
	if err != nil {
		return fmt.Errorf("statestore: save %s state: %w", kind, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("statestore: save %s state: %w", kind, err)
	}

	attempt.SetState(kind, state)
	return nil
}

// LatestAttempt implements output.DeliveryStore.
func (s *Store) LatestAttempt(ctx context.Context, letterID string) (*entity.DeliveryAttempt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, letter_id, letter_contact_step, result, created_at
		 FROM delivery_attempts WHERE letter_id = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT 1`, letterID)

	var attempt entity.DeliveryAttempt
	var createdAt int64
	err := row.Scan(&attempt.ID, &attempt.LetterID, &attempt.LetterContactStep, &attempt.Result, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: latest attempt for %s: %w", letterID, err)
	}
	attempt.CreatedAt = time.UnixMilli(createdAt).UTC()

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, uri, cookie_jar, raw_html FROM browser_states WHERE attempt_id = ?`, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("statestore: load states for %s: %w", attempt.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		st := &entity.BrowserState{}
		if err := rows.Scan(&kind, &st.URI, &st.CookieJar, &st.RawHTML); err != nil {
			return nil, fmt.Errorf("statestore: load states for %s: %w", attempt.ID, err)
		}
		attempt.SetState(entity.StateKind(kind), st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("statestore: load states for %s: %w", attempt.ID, err)
	}

	return &attempt, nil
}

// SaveLetter implements output.DeliveryStore.
func (s *Store) SaveLetter(ctx context.Context, letter *entity.Letter) error {
	var threadID int64
	if letter.Thread != nil {
		threadID = letter.Thread.ID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO letters (id, thread_id, subject, message, issue_area, status, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET status = excluded.status, updated_at = excluded.updated_at`,
		letter.ID, threadID, letter.Subject, letter.Message, letter.IssueArea,
		letter.Status, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("statestore: save letter %s: %w", letter.ID, err)
	}
	return nil
}

// LoadLetter implements output.DeliveryStore. The thread's sender details
// are not stored; only the thread id comes back.
func (s *Store) LoadLetter(ctx context.Context, id string) (*entity.Letter, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, thread_id, subject, message, issue_area, status FROM letters WHERE id = ?`, id)

	var letter entity.Letter
	var threadID int64
	err := row.Scan(&letter.ID, &threadID, &letter.Subject, &letter.Message,
		&letter.IssueArea, &letter.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("statestore: load letter %s: %w", id, err)
	}
	letter.Thread = &entity.Thread{ID: threadID}
	return &letter, nil
}
