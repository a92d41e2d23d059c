package snapshot

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
)

// fakeSession records RebuildPage calls and serves a fixed document.
type fakeSession struct {
	doc     *goquery.Document
	uri     string
	cookies []byte

	rebuiltURI     string
	rebuiltCookies []byte
	rebuiltHTML    string
}

var _ output.Session = (*fakeSession)(nil)

func (f *fakeSession) Fetch(context.Context, string) (*goquery.Document, error) { return f.doc, nil }
func (f *fakeSession) SubmitForm(context.Context, string) (*goquery.Document, error) {
	return f.doc, nil
}
func (f *fakeSession) Document() *goquery.Document    { return f.doc }
func (f *fakeSession) CurrentURI() string             { return f.uri }
func (f *fakeSession) ExportCookies() ([]byte, error) { return f.cookies, nil }
func (f *fakeSession) ImportCookies(data []byte) error {
	f.cookies = data
	return nil
}
func (f *fakeSession) RebuildPage(uri string, cookieJar []byte, rawHTML string) error {
	f.rebuiltURI = uri
	f.rebuiltCookies = cookieJar
	f.rebuiltHTML = rawHTML
	return nil
}

func sessionWith(t *testing.T, html string) *fakeSession {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeSession{doc: doc, uri: "http://example.com/form", cookies: []byte(`[]`)}
}

func TestTakeCapturesEssentialState(t *testing.T) {
	sess := sessionWith(t, `<html><body><p>hello</p></body></html>`)

	st, err := Take(sess)
	if err != nil {
		t.Fatal(err)
	}
	if st.URI != "http://example.com/form" {
		t.Errorf("URI = %q", st.URI)
	}
	if string(st.CookieJar) != `[]` {
		t.Errorf("CookieJar = %q", st.CookieJar)
	}
	if !strings.Contains(st.RawHTML, "<p>hello</p>") {
		t.Errorf("RawHTML missing document content: %q", st.RawHTML)
	}
}

func TestTakeTranscodesToASCII(t *testing.T) {
	sess := sessionWith(t, `<html><body><p>héllo wörld</p></body></html>`)

	st, err := Take(sess)
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range st.RawHTML {
		if r >= 128 {
			t.Fatalf("non-ASCII rune %q survived transcoding", r)
		}
	}
	if !strings.Contains(st.RawHTML, "h?llo w?rld") {
		t.Errorf("lossy transcoding expected, got %q", st.RawHTML)
	}
}

func TestRestoreRebuildsSession(t *testing.T) {
	sess := sessionWith(t, `<html></html>`)
	st := &entity.BrowserState{
		URI:       "http://example.com/saved",
		CookieJar: []byte(`[{"name":"a"}]`),
		RawHTML:   "<html><body>saved</body></html>",
	}

	if err := Restore(sess, st); err != nil {
		t.Fatal(err)
	}
	if sess.rebuiltURI != st.URI || sess.rebuiltHTML != st.RawHTML {
		t.Error("restore should pass the checkpoint through to the session")
	}
}

func TestRestoreNilStateIsNoOp(t *testing.T) {
	sess := sessionWith(t, `<html></html>`)
	if err := Restore(sess, nil); err != nil {
		t.Fatal(err)
	}
	if sess.rebuiltURI != "" {
		t.Error("nil state must not touch the session")
	}
}
