package mechanize

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"formageddon/internal/application/port/output"
)

// userAgent mimics a desktop browser; several congressional forms refuse
// requests without a recognizable UA.
const userAgent = "Mozilla/4.0 (compatible; MSIE 7.0; Windows NT 5.1)"

// maxMetaRefreshHops bounds meta-refresh following per fetch.
const maxMetaRefreshHops = 3

// Config tunes a Session.
type Config struct {
	// Timeout applies to each individual fetch or submission.
	Timeout time.Duration

	// UserAgent overrides the default desktop UA string.
	UserAgent string

	// Renderer, when set, replaces plain HTTP page loads with a real
	// browser engine render (for javascript-dependent recipients).
	// Submissions always go over plain HTTP.
	Renderer output.PageRenderer

	Logger output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		Timeout:   30 * time.Second,
		UserAgent: userAgent,
		Logger:    output.NopLogger{},
	}
}

// Session is an HTTP-and-parsed-HTML browsing session: the parsed document
// is mutated in place by the field fill engine, then serialized back into a
// form submission. Implements output.Session.
type Session struct {
	client   *http.Client
	jar      *Jar
	renderer output.PageRenderer
	logger   output.LoggerPort
	ua       string
	timeout  time.Duration

	doc *goquery.Document
	uri *url.URL
}

var _ output.Session = (*Session)(nil)

func New(cfg Config) *Session {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = userAgent
	}
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}

	jar := NewJar()
	return &Session{
		client:   &http.Client{Jar: jar},
		jar:      jar,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
		ua:       cfg.UserAgent,
		timeout:  cfg.Timeout,
	}
}

// Factory returns a SessionFactory producing sessions with this config.
func Factory(cfg Config) output.SessionFactory {
	return func(ctx context.Context) (output.Session, error) {
		return New(cfg), nil
	}
}

// Fetch implements output.Session.
func (s *Session) Fetch(ctx context.Context, target string) (*goquery.Document, error) {
	if s.renderer != nil {
		return s.fetchRendered(ctx, target)
	}
	return s.fetchHTTP(ctx, target, 0)
}

func (s *Session) fetchHTTP(ctx context.Context, target string, hop int) (*goquery.Document, error) {
	body, finalURL, err := s.do(ctx, http.MethodGet, target, "", nil)
	if err != nil {
		return nil, err
	}
	if err := s.setPage(finalURL, body); err != nil {
		return nil, err
	}

	if next, ok := s.metaRefreshTarget(); ok && hop < maxMetaRefreshHops {
		s.logger.Debug("following meta refresh", "from", finalURL, "to", next)
		return s.fetchHTTP(ctx, next, hop+1)
	}
	return s.doc, nil
}

func (s *Session) fetchRendered(ctx context.Context, target string) (*goquery.Document, error) {
	page, err := s.renderer.Render(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", target, err)
	}

	u, err := url.Parse(page.URL)
	if err != nil {
		return nil, fmt.Errorf("render %s: bad final url: %w", target, err)
	}
	s.jar.SetCookies(u, page.Cookies)

	if err := s.setPage(page.URL, page.HTML); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// SubmitForm implements output.Session. The enclosing form of the matched
// submit control is serialized from the live (possibly mutated) document.
func (s *Session) SubmitForm(ctx context.Context, submitSelector string) (*goquery.Document, error) {
	if s.doc == nil {
		return nil, fmt.Errorf("submit %q: no document loaded", submitSelector)
	}

	sub, err := s.buildSubmission(submitSelector)
	if err != nil {
		return nil, err
	}

	var respBody, finalURL string
	if sub.method == http.MethodPost {
		respBody, finalURL, err = s.do(ctx, http.MethodPost, sub.action, sub.values.Encode(), map[string]string{
			"Content-Type": "application/x-www-form-urlencoded",
		})
	} else {
		u, perr := url.Parse(sub.action)
		if perr != nil {
			return nil, fmt.Errorf("submit %q: bad action: %w", submitSelector, perr)
		}
		u.RawQuery = sub.values.Encode()
		respBody, finalURL, err = s.do(ctx, http.MethodGet, u.String(), "", nil)
	}
	if err != nil {
		return nil, err
	}

	if err := s.setPage(finalURL, respBody); err != nil {
		return nil, err
	}
	return s.doc, nil
}

// Document implements output.Session.
func (s *Session) Document() *goquery.Document { return s.doc }

// CurrentURI implements output.Session.
func (s *Session) CurrentURI() string {
	if s.uri == nil {
		return ""
	}
	return s.uri.String()
}

// ExportCookies implements output.Session.
func (s *Session) ExportCookies() ([]byte, error) { return s.jar.Export() }

// ImportCookies implements output.Session.
func (s *Session) ImportCookies(data []byte) error { return s.jar.Import(data) }

// RebuildPage implements output.Session: restores a checkpointed page
// without touching the network, the way a resumed delivery starts.
func (s *Session) RebuildPage(uri string, cookieJar []byte, rawHTML string) error {
	if err := s.jar.Import(cookieJar); err != nil {
		return fmt.Errorf("rebuild page: %w", err)
	}
	if err := s.setPage(uri, rawHTML); err != nil {
		return fmt.Errorf("rebuild page: %w", err)
	}
	return nil
}

func (s *Session) do(ctx context.Context, method, target, body string, headers map[string]string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return "", "", fmt.Errorf("%s %s: %w", method, target, err)
	}
	req.Header.Set("User-Agent", s.ua)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("%s %s: read body: %w", method, target, err)
	}

	return string(data), resp.Request.URL.String(), nil
}

func (s *Session) setPage(uri, rawHTML string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("set page: bad uri %q: %w", uri, err)
	}

	node, err := html.Parse(strings.NewReader(CleanBody(rawHTML)))
	if err != nil {
		return fmt.Errorf("set page: parse %s: %w", uri, err)
	}
	doc := goquery.NewDocumentFromNode(node)
	doc.Url = u

	s.doc = doc
	s.uri = u
	return nil
}

var metaRefreshRe = regexp.MustCompile(`(?i)^\s*\d+\s*;\s*url\s*=\s*(.+)$`)

// metaRefreshTarget reports a meta refresh redirect on the current document.
func (s *Session) metaRefreshTarget() (string, bool) {
	var target string
	s.doc.Find(`meta[http-equiv]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		equiv, _ := sel.Attr("http-equiv")
		if !strings.EqualFold(equiv, "refresh") {
			return true
		}
		content, _ := sel.Attr("content")
		m := metaRefreshRe.FindStringSubmatch(content)
		if m == nil {
			return true
		}
		target = strings.Trim(m[1], `'" `)
		return false
	})
	if target == "" {
		return "", false
	}
	return s.resolve(target), true
}

// resolve makes a possibly relative URL absolute against the current page.
func (s *Session) resolve(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if s.uri == nil {
		return ref
	}
	return s.uri.ResolveReference(u).String()
}
