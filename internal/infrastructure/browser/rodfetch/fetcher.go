// Package rodfetch renders pages through headless Chrome for contact forms
// that only materialize after client-side scripts run.
package rodfetch

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"formageddon/internal/application/port/output"
)

var _ output.PageRenderer = (*Fetcher)(nil)

type Config struct {
	Headless  bool
	NoSandbox bool
	Timeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Headless:  true,
		NoSandbox: true,
		Timeout:   30 * time.Second,
	}
}

// Fetcher drives one shared headless browser; each Render runs in its own
// page so cookie state does not leak between deliveries.
type Fetcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher // важно! чтобы корректно убить процесс Chrome
	timeout  time.Duration
}

func New(cfg Config) (*Fetcher, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Fetcher{
		browser:  browser,
		launcher: l,
		timeout:  timeout,
	}, nil
}

// Render loads the URL, waits for the page to settle and returns the
// script-expanded document plus the cookies the site set.
func (f *Fetcher) Render(ctx context.Context, url string) (*output.RenderedPage, error) {
	page, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(f.timeout)

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	page.WaitIdle(5 * time.Second)

	obj, err := page.Eval("() => document.documentElement.outerHTML")
	if err != nil {
		return nil, fmt.Errorf("extract html: %w", err)
	}
	var value gson.JSON = obj.Value
	html := value.Str()

	info, err := page.Info()
	if err != nil {
		return nil, fmt.Errorf("page info: %w", err)
	}

	rodCookies, err := f.browser.GetCookies()
	if err != nil {
		return nil, fmt.Errorf("get cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(rodCookies))
	for _, c := range rodCookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
			Secure: c.Secure,
		})
	}

	return &output.RenderedPage{
		URL:     info.URL,
		HTML:    html,
		Cookies: cookies,
	}, nil
}

func (f *Fetcher) Close() error {
	if f.browser != nil {
		if err := f.browser.Close(); err != nil {
			return err
		}
	}
	if f.launcher != nil {
		f.launcher.Kill() // убиваем процесс Chrome
		f.launcher.Cleanup()
	}
	return nil
}
