// Package snapshot converts a live browsing session to and from the durable
// browser state records a delivery attempt checkpoints with.
package snapshot

import (
	"fmt"
	"strings"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

// Take captures the session's essential state: current URI, cookie store and
// the raw document. The document text is transcoded to ASCII best-effort;
// non-ASCII runes are replaced, which is lossy but keeps the stored html
// stable across storage encodings.
func Take(sess output.Session) (*entity.BrowserState, error) {
	doc := sess.Document()
	if doc == nil {
		return nil, fmt.Errorf("snapshot: session has no document")
	}

	rawHTML, err := doc.Html()
	if err != nil {
		return nil, fmt.Errorf("snapshot: render document: %w", err)
	}

	cookies, err := sess.ExportCookies()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	return &entity.BrowserState{
		URI:       sess.CurrentURI(),
		CookieJar: cookies,
		RawHTML:   toASCII(rawHTML),
	}, nil
}

// Restore rebuilds the session from a checkpoint. A nil state is a no-op so
// callers can pass through an attempt that never saved one.
func Restore(sess output.Session, st *entity.BrowserState) error {
	if st == nil {
		return nil
	}
	if err := sess.RebuildPage(st.URI, st.CookieJar, st.RawHTML); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	return nil
}

// toASCII replaces every non-ASCII rune with '?'.
func toASCII(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 128 {
			b.WriteRune(r)
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}
