package mechanize

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// cookieRecord is the serialized form of one cookie. net/http/cookiejar
// cannot enumerate its contents, and checkpointing requires exactly that,
// so the session carries its own jar.
type cookieRecord struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain"`
	Path     string    `json:"path"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HTTPOnly bool      `json:"http_only,omitempty"`
}

// Jar is a serializable http.CookieJar. Matching is host-and-path based and
// intentionally simpler than RFC 6265: contact form flows stay within one
// site, and the jar must round-trip through a checkpoint byte-for-byte.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]cookieRecord // key: domain + "\x00" + path + "\x00" + name
}

var _ http.CookieJar = (*Jar)(nil)

func NewJar() *Jar {
	return &Jar{cookies: make(map[string]cookieRecord)}
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range cookies {
		domain := strings.TrimPrefix(c.Domain, ".")
		if domain == "" {
			domain = u.Hostname()
		}
		path := c.Path
		if path == "" {
			path = "/"
		}

		rec := cookieRecord{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
		}
		if c.MaxAge > 0 {
			rec.Expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
		} else if !c.Expires.IsZero() {
			rec.Expires = c.Expires
		}

		key := rec.Domain + "\x00" + rec.Path + "\x00" + rec.Name
		if c.MaxAge < 0 || (!rec.Expires.IsZero() && rec.Expires.Before(time.Now())) {
			delete(j.cookies, key)
			continue
		}
		j.cookies[key] = rec
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	host := u.Hostname()
	path := u.Path
	if path == "" {
		path = "/"
	}

	var out []*http.Cookie
	for _, rec := range j.cookies {
		if !domainMatch(host, rec.Domain) || !pathMatch(path, rec.Path) {
			continue
		}
		if rec.Secure && u.Scheme != "https" {
			continue
		}
		if !rec.Expires.IsZero() && rec.Expires.Before(time.Now()) {
			continue
		}
		out = append(out, &http.Cookie{Name: rec.Name, Value: rec.Value})
	}
	return out
}

// Export serializes the jar for a browser state checkpoint.
func (j *Jar) Export() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	recs := make([]cookieRecord, 0, len(j.cookies))
	for _, rec := range j.cookies {
		recs = append(recs, rec)
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("export cookies: %w", err)
	}
	return data, nil
}

// Import replaces the jar's contents from an Export blob. An empty blob
// yields an empty jar.
func (j *Jar) Import(data []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.cookies = make(map[string]cookieRecord)
	if len(data) == 0 {
		return nil
	}

	var recs []cookieRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return fmt.Errorf("import cookies: %w", err)
	}
	for _, rec := range recs {
		j.cookies[rec.Domain+"\x00"+rec.Path+"\x00"+rec.Name] = rec
	}
	return nil
}

func domainMatch(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func pathMatch(reqPath, cookiePath string) bool {
	if reqPath == cookiePath {
		return true
	}
	if strings.HasPrefix(reqPath, cookiePath) {
		return strings.HasSuffix(cookiePath, "/") || reqPath[len(cookiePath)] == '/'
	}
	return false
}
