package mechanize

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func newTestSession() *Session {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	return New(cfg)
}

func TestFetchParsesDocumentAndTracksURI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><h1>Contact Us</h1></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession()
	doc, err := s.Fetch(context.Background(), srv.URL+"/contact")
	if err != nil {
		t.Fatal(err)
	}
	if got := doc.Find("h1").Text(); got != "Contact Us" {
		t.Errorf("h1 = %q, want Contact Us", got)
	}
	if got := s.CurrentURI(); got != srv.URL+"/contact" {
		t.Errorf("CurrentURI = %q, want %q", got, srv.URL+"/contact")
	}
}

func TestFetchSendsDesktopUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	s := newTestSession()
	if _, err := s.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if gotUA != "Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 5.1)" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestFetchFollowsMetaRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0; url=/final"></head></html>`)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p id="done">arrived</p></body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession()
	doc, err := s.Fetch(context.Background(), srv.URL+"/start")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Find("#done").Length() != 1 {
		t.Error("meta refresh target was not loaded")
	}
	if !strings.HasSuffix(s.CurrentURI(), "/final") {
		t.Errorf("CurrentURI = %q, want /final", s.CurrentURI())
	}
}

func TestFetchBoundsMetaRefreshLoops(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprint(w, `<html><head><meta http-equiv="refresh" content="0; url=/loop"></head></html>`)
	}))
	defer srv.Close()

	s := newTestSession()
	if _, err := s.Fetch(context.Background(), srv.URL+"/loop"); err != nil {
		t.Fatal(err)
	}
	if hits > 4 { // initial fetch plus bounded hops
		t.Errorf("refresh loop fetched %d times", hits)
	}
}

func TestSubmitFormPostsMutatedDocument(t *testing.T) {
	var posted url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form method="post" action="/deliver">
			<input type="text" name="name" id="name">
			<textarea name="comment" id="comment"></textarea>
			<select name="topic" id="topic">
				<option value="a">A</option>
				<option value="b">B</option>
			</select>
			<input type="checkbox" name="optin" id="optin" value="1">
			<input type="submit" name="go" value="Send" id="go">
			<input type="submit" name="other" value="Nope">
		</form></body></html>`)
	})
	mux.HandleFunc("/deliver", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		posted = r.PostForm
		fmt.Fprint(w, `<html><body>Thank you</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession()
	doc, err := s.Fetch(context.Background(), srv.URL+"/form")
	if err != nil {
		t.Fatal(err)
	}

	doc.Find("#name").SetAttr("value", "Jane Doe")
	doc.Find("#comment").SetText("hello there")
	doc.Find(`#topic option[value="b"]`).SetAttr("selected", "selected")
	doc.Find("#optin").SetAttr("checked", "checked")

	resp, err := s.SubmitForm(context.Background(), "#go")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Text(), "Thank you") {
		t.Error("response document should hold the confirmation page")
	}

	want := url.Values{
		"name":    {"Jane Doe"},
		"comment": {"hello there"},
		"topic":   {"b"},
		"optin":   {"1"},
		"go":      {"Send"},
	}
	for k, v := range want {
		if got := posted.Get(k); got != v[0] {
			t.Errorf("posted %s = %q, want %q", k, got, v[0])
		}
	}
	if posted.Has("other") {
		t.Error("non-clicked submit control must not be serialized")
	}
}

func TestSubmitFormGetUsesQueryString(t *testing.T) {
	var gotQuery url.Values
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form action="/search">
			<input type="text" name="q" id="q">
			<input type="submit" id="go" value="Go">
		</form></body></html>`)
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		fmt.Fprint(w, `<html><body>results</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession()
	doc, err := s.Fetch(context.Background(), srv.URL+"/form")
	if err != nil {
		t.Fatal(err)
	}
	doc.Find("#q").SetAttr("value", "housing")

	if _, err := s.SubmitForm(context.Background(), "#go"); err != nil {
		t.Fatal(err)
	}
	if got := gotQuery.Get("q"); got != "housing" {
		t.Errorf("query q = %q, want housing", got)
	}
}

func TestCookiesPersistAcrossRequests(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc123", Path: "/"})
		fmt.Fprint(w, `<html></html>`)
	})
	var echoed string
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err == nil {
			echoed = c.Value
		}
		fmt.Fprint(w, `<html></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := newTestSession()
	if _, err := s.Fetch(context.Background(), srv.URL+"/set"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Fetch(context.Background(), srv.URL+"/check"); err != nil {
		t.Fatal(err)
	}
	if echoed != "abc123" {
		t.Errorf("cookie value on second request = %q, want abc123", echoed)
	}
}

func TestRebuildPageRestoresDocumentAndCookies(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/form", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrf", Value: "tok", Path: "/"})
		fmt.Fprint(w, `<html><body><form method="post" action="/deliver">
			<input type="text" name="name" id="name">
			<input type="submit" id="go">
		</form></body></html>`)
	})
	var gotCookie string
	mux.HandleFunc("/deliver", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("csrf"); err == nil {
			gotCookie = c.Value
		}
		fmt.Fprint(w, `<html></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	first := newTestSession()
	doc, err := first.Fetch(context.Background(), srv.URL+"/form")
	if err != nil {
		t.Fatal(err)
	}
	html, err := doc.Html()
	if err != nil {
		t.Fatal(err)
	}
	cookies, err := first.ExportCookies()
	if err != nil {
		t.Fatal(err)
	}

	second := newTestSession()
	if err := second.RebuildPage(first.CurrentURI(), cookies, html); err != nil {
		t.Fatal(err)
	}
	if second.CurrentURI() != first.CurrentURI() {
		t.Errorf("rebuilt URI = %q, want %q", second.CurrentURI(), first.CurrentURI())
	}

	second.Document().Find("#name").SetAttr("value", "Jane")
	if _, err := second.SubmitForm(context.Background(), "#go"); err != nil {
		t.Fatal(err)
	}
	if gotCookie != "tok" {
		t.Errorf("restored session sent cookie %q, want tok", gotCookie)
	}
}

func TestSubmitUnknownControlFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><form></form></body></html>`)
	}))
	defer srv.Close()

	s := newTestSession()
	if _, err := s.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SubmitForm(context.Background(), "#missing"); err == nil {
		t.Error("submitting a missing control should fail")
	}
}

func TestCleanBodyStripsBrokenFragments(t *testing.T) {
	raw := `<html><body><div class="clear"/> </div><p>ok</p><div class="clear"/></div></body></html>`
	cleaned := CleanBody(raw)
	if strings.Contains(cleaned, `<div class="clear"/>`) {
		t.Errorf("broken fragments survived: %q", cleaned)
	}
	if !strings.Contains(cleaned, "<p>ok</p>") {
		t.Error("cleaning should preserve the rest of the markup")
	}
}
