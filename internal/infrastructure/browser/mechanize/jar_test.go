package mechanize

import (
	"net/http"
	"net/url"
	"testing"
	"time"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestJarMatchesDomainAndPath(t *testing.T) {
	jar := NewJar()
	site := mustURL(t, "http://example.com/contact/form")
	jar.SetCookies(site, []*http.Cookie{
		{Name: "scoped", Value: "1", Path: "/contact"},
		{Name: "root", Value: "2", Path: "/"},
	})

	if got := jar.Cookies(mustURL(t, "http://example.com/contact/form")); len(got) != 2 {
		t.Errorf("matching path: got %d cookies, want 2", len(got))
	}
	if got := jar.Cookies(mustURL(t, "http://example.com/about")); len(got) != 1 {
		t.Errorf("non-matching path: got %d cookies, want only the root cookie", len(got))
	}
	if got := jar.Cookies(mustURL(t, "http://other.com/contact")); len(got) != 0 {
		t.Errorf("other domain: got %d cookies, want 0", len(got))
	}
}

func TestJarSecureCookiesNeedHTTPS(t *testing.T) {
	jar := NewJar()
	site := mustURL(t, "https://example.com/")
	jar.SetCookies(site, []*http.Cookie{{Name: "s", Value: "1", Secure: true}})

	if got := jar.Cookies(mustURL(t, "http://example.com/")); len(got) != 0 {
		t.Error("secure cookie must not be sent over http")
	}
	if got := jar.Cookies(mustURL(t, "https://example.com/")); len(got) != 1 {
		t.Error("secure cookie should be sent over https")
	}
}

func TestJarDropsExpiredCookies(t *testing.T) {
	jar := NewJar()
	site := mustURL(t, "http://example.com/")
	jar.SetCookies(site, []*http.Cookie{
		{Name: "gone", Value: "1", Expires: time.Now().Add(-time.Hour)},
		{Name: "alive", Value: "2", Expires: time.Now().Add(time.Hour)},
	})

	got := jar.Cookies(site)
	if len(got) != 1 || got[0].Name != "alive" {
		t.Errorf("got %v, want only the unexpired cookie", got)
	}
}

func TestJarExportImportRoundTrip(t *testing.T) {
	jar := NewJar()
	site := mustURL(t, "http://example.com/")
	jar.SetCookies(site, []*http.Cookie{
		{Name: "a", Value: "1"},
		{Name: "b", Value: "2", Path: "/sub"},
	})

	blob, err := jar.Export()
	if err != nil {
		t.Fatal(err)
	}

	restored := NewJar()
	if err := restored.Import(blob); err != nil {
		t.Fatal(err)
	}
	if got := restored.Cookies(mustURL(t, "http://example.com/sub/page")); len(got) != 2 {
		t.Errorf("restored jar returned %d cookies, want 2", len(got))
	}

	if err := restored.Import(nil); err != nil {
		t.Fatal(err)
	}
	if got := restored.Cookies(site); len(got) != 0 {
		t.Error("importing an empty blob should clear the jar")
	}
}
