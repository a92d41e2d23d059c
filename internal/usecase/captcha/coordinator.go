// Package captcha detects, captures and redeems captcha challenges around a
// form submission.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"formageddon/internal/application/port/output"
	"formageddon/internal/domain/entity"
	"formageddon/internal/usecase/fill"
	"formageddon/internal/usecase/snapshot"
)

// ErrNoChallengeImage means the form requires a captcha solution but no
// challenge image is configured, or its element is not on the page. The
// delivery still pauses; there is just nothing to capture.
var ErrNoChallengeImage = errors.New("no challenge image")

// Config tunes a Coordinator.
type Config struct {
	Sessions output.SessionFactory
	Sink     output.ChallengeSink
	Fill     *fill.Engine
	Logger   output.LoggerPort

	// Solver, when set, is asked for an answer before the challenge is
	// parked for a human.
	Solver output.Solver

	// DownloadTimeout applies to challenge image downloads.
	DownloadTimeout time.Duration
}

// Coordinator owns the challenge side of a submission: deciding whether one
// is required, capturing the challenge image for an external solver, and
// redeeming a supplied solution against a secondary endpoint.
type Coordinator struct {
	sessions output.SessionFactory
	sink     output.ChallengeSink
	fill     *fill.Engine
	solver   output.Solver
	logger   output.LoggerPort
	client   *http.Client
}

func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = output.NopLogger{}
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 30 * time.Second
	}
	return &Coordinator{
		sessions: cfg.Sessions,
		sink:     cfg.Sink,
		fill:     cfg.Fill,
		solver:   cfg.Solver,
		logger:   cfg.Logger,
		client:   &http.Client{Timeout: cfg.DownloadTimeout},
	}
}

// RequiresChallenge reports whether the form needs a captcha solution before
// it can be submitted.
func (c *Coordinator) RequiresChallenge(form *entity.Form) bool {
	return form != nil && form.HasCaptcha()
}

// CaptureChallenge extracts the challenge image for the letter and hands it
// to the sink, returning the location the image is retrievable at. The image
// lives either on the primary document (selector) or on the separate
// challenge page of a secondary-challenge spec.
func (c *Coordinator) CaptureChallenge(ctx context.Context, sess output.Session, form *entity.Form, letter *entity.Letter) (string, error) {
	imgURL, err := c.challengeImageURL(ctx, sess, form)
	if err != nil {
		return "", err
	}
	if imgURL == "" {
		return "", fmt.Errorf("capture challenge: %w", ErrNoChallengeImage)
	}

	img, err := c.download(ctx, imgURL)
	if err != nil {
		return "", fmt.Errorf("capture challenge: %w", err)
	}

	loc, err := c.sink.Put(ctx, letter.ID, img)
	if err != nil {
		return "", fmt.Errorf("capture challenge: %w", err)
	}

	c.logger.Info("challenge image captured", "letter", letter.ID, "source", imgURL, "stored", loc)
	return loc, nil
}

// TrySolve downloads the challenge image and asks the configured solver for
// an answer. It returns entity.ErrNotImplemented when no solver is wired so
// the caller falls back to parking the challenge for a human.
func (c *Coordinator) TrySolve(ctx context.Context, sess output.Session, form *entity.Form, letter *entity.Letter) (string, error) {
	if c.solver == nil {
		return "", entity.ErrNotImplemented
	}
	imgURL, err := c.challengeImageURL(ctx, sess, form)
	if err != nil {
		return "", err
	}
	if imgURL == "" {
		return "", fmt.Errorf("solve challenge: %w", ErrNoChallengeImage)
	}
	img, err := c.download(ctx, imgURL)
	if err != nil {
		return "", fmt.Errorf("solve challenge: %w", err)
	}
	answer, err := c.solver.Solve(ctx, img)
	if err != nil {
		return "", err
	}
	c.logger.Info("challenge solved automatically", "letter", letter.ID)
	return answer, nil
}

// Redeem runs the secondary-challenge round trip on an independent session:
// restore the prior checkpoint, load the challenge endpoint, submit the
// solution through the sub-form and extract the redemption token. The
// sub-session's final state is returned for the captcha checkpoint slot.
func (c *Coordinator) Redeem(ctx context.Context, spec *entity.SecondaryChallengeSpec, letter *entity.Letter, prior *entity.BrowserState) (token string, capState *entity.BrowserState, err error) {
	sub, err := c.sessions(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("redeem challenge: open session: %w", err)
	}
	if err := snapshot.Restore(sub, prior); err != nil {
		return "", nil, fmt.Errorf("redeem challenge: %w", err)
	}

	doc, err := sub.Fetch(ctx, spec.URL)
	if err != nil {
		return "", nil, fmt.Errorf("redeem challenge: %w", err)
	}

	for _, ff := range spec.Form.OrderedFields() {
		if ff.NotChangeable() {
			continue
		}
		if err := c.fill.Fill(ctx, doc, spec.Form, ff, letter); err != nil {
			return "", nil, fmt.Errorf("redeem challenge: fill %q: %w", ff.CSSSelector, err)
		}
	}

	resp, err := sub.SubmitForm(ctx, spec.Form.SubmitCSSSelector)
	if err != nil {
		return "", nil, fmt.Errorf("redeem challenge: submit: %w", err)
	}

	el := resp.Find(spec.TokenCSSSelector).First()
	if el.Length() == 0 {
		return "", nil, fmt.Errorf("redeem challenge: token element %q not found", spec.TokenCSSSelector)
	}
	if spec.TokenAttr != "" {
		token = el.AttrOr(spec.TokenAttr, "")
	} else {
		token = strings.TrimSpace(el.Text())
	}
	if token == "" {
		return "", nil, fmt.Errorf("redeem challenge: empty token from %q", spec.TokenCSSSelector)
	}

	capState, err = snapshot.Take(sub)
	if err != nil {
		return "", nil, fmt.Errorf("redeem challenge: %w", err)
	}

	c.logger.Info("challenge redeemed", "letter", letter.ID, "endpoint", spec.URL)
	return token, capState, nil
}

// challengeImageURL resolves the absolute URL of the challenge image.
func (c *Coordinator) challengeImageURL(ctx context.Context, sess output.Session, form *entity.Form) (string, error) {
	if spec := form.SecondaryChallenge; spec != nil && spec.ImageCSSSelector != "" {
		sub, err := c.sessions(ctx)
		if err != nil {
			return "", fmt.Errorf("challenge image: open session: %w", err)
		}
		doc, err := sub.Fetch(ctx, spec.URL)
		if err != nil {
			return "", fmt.Errorf("challenge image: %w", err)
		}
		src, ok := doc.Find(spec.ImageCSSSelector).First().Attr("src")
		if !ok {
			return "", fmt.Errorf("challenge image: %q not on %s: %w",
				spec.ImageCSSSelector, spec.URL, ErrNoChallengeImage)
		}
		return resolveRef(sub.CurrentURI(), src), nil
	}

	if form.CaptchaImage == nil {
		return "", nil
	}
	doc := sess.Document()
	if doc == nil {
		return "", fmt.Errorf("challenge image: no document loaded")
	}
	src, ok := doc.Find(form.CaptchaImage.CSSSelector).First().Attr("src")
	if !ok {
		return "", fmt.Errorf("challenge image: %q not on %s: %w",
			form.CaptchaImage.CSSSelector, sess.CurrentURI(), ErrNoChallengeImage)
	}
	return resolveRef(sess.CurrentURI(), src), nil
}

func (c *Coordinator) download(ctx context.Context, imgURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgURL, nil)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imgURL, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imgURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: status %d", imgURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", imgURL, err)
	}
	return data, nil
}

func resolveRef(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
