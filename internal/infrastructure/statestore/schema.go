package statestore

// Schema holds the checkpoint store tables. Browser states are keyed by
// (attempt, kind) and overwritten in place; attempts are additive and never
// deleted, they are the delivery audit trail.
const Schema = `
CREATE TABLE IF NOT EXISTS letters (
    id          TEXT PRIMARY KEY,
    thread_id   INTEGER NOT NULL DEFAULT 0,
    subject     TEXT NOT NULL DEFAULT '',
    message     TEXT NOT NULL DEFAULT '',
    issue_area  TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL DEFAULT 'START',
    updated_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS delivery_attempts (
    id                  TEXT PRIMARY KEY,
    letter_id           TEXT NOT NULL,
    letter_contact_step INTEGER NOT NULL DEFAULT 0,
    result              TEXT NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_letter ON delivery_attempts(letter_id, created_at DESC);

CREATE TABLE IF NOT EXISTS browser_states (
    attempt_id  TEXT NOT NULL REFERENCES delivery_attempts(id),
    kind        TEXT NOT NULL CHECK (kind IN ('before','after','captcha')),
    uri         TEXT NOT NULL DEFAULT '',
    cookie_jar  BLOB,
    raw_html    TEXT NOT NULL DEFAULT '',
    saved_at    INTEGER NOT NULL,
    PRIMARY KEY (attempt_id, kind)
);
`
