package output

import (
	"context"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Session is one scripted browsing session: fetch pages, mutate the parsed
// document in place, submit a form located by its submit control. Sessions
// are single-worker; no operation is safe for concurrent use.
type Session interface {
	// Fetch loads the URL and replaces the current document.
	Fetch(ctx context.Context, url string) (*goquery.Document, error)

	// SubmitForm serializes and submits the form enclosing the control
	// matched by submitSelector, replacing the current document with the
	// response.
	SubmitForm(ctx context.Context, submitSelector string) (*goquery.Document, error)

	// Document returns the current parsed document, nil before the first
	// fetch.
	Document() *goquery.Document

	// CurrentURI returns the URL of the current document.
	CurrentURI() string

	// ExportCookies serializes the session's cookie store.
	ExportCookies() ([]byte, error)

	// ImportCookies replaces the session's cookie store from a serialized
	// blob produced by ExportCookies.
	ImportCookies(data []byte) error

	// RebuildPage restores the session to a checkpointed page: URI, cookie
	// store and raw document, without touching the network.
	RebuildPage(uri string, cookieJar []byte, rawHTML string) error
}

// SessionFactory opens a fresh, empty session. The captcha redemption flow
// uses it to run its round-trip on an independent session.
type SessionFactory func(ctx context.Context) (Session, error)

// RenderedPage is the outcome of rendering a URL in a real browser engine.
type RenderedPage struct {
	URL     string
	HTML    string
	Cookies []*http.Cookie
}

// PageRenderer renders javascript-dependent pages before the session takes
// over. Optional; plain HTTP fetching is the default.
type PageRenderer interface {
	Render(ctx context.Context, url string) (*RenderedPage, error)
	Close() error
}
